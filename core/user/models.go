package user

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/pathways/core"
)

type Role string

// Roles
const (
	RoleStaff   Role = "staff"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

var (
	AllRoles = []Role{RoleStaff, RoleManager, RoleAdmin}

	rolePriorities = map[Role]int{
		RoleAdmin:   30,
		RoleManager: 20,
		RoleStaff:   10,
	}

	Roles = []RoleInfo{
		{Name: "Staff", Value: RoleStaff},
		{Name: "Manager", Value: RoleManager},
		{Name: "Admin", Value: RoleAdmin},
	}
)

// ParseRole returns the Role matching s (case-insensitive).
func ParseRole(s string) (Role, bool) {
	s = core.CleanString(s, true /* lower */)
	for _, r := range AllRoles {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

func RolePriority(role Role) int {
	return rolePriorities[role]
}

// NeedsBranch reports whether users with this role must belong to a branch.
func (r Role) NeedsBranch() bool {
	return r == RoleStaff || r == RoleManager
}

type RoleInfo struct {
	Name  string `json:"name"`
	Value Role   `json:"value"`
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	Email        string    `json:"email"` // login
	Role         Role      `json:"role"`
	BranchID     string    `json:"branch_id"`
	IsActive     bool      `json:"is_active"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsAdmin() bool   { return u.Role == RoleAdmin }
func (u *User) IsManager() bool { return u.Role == RoleManager }
func (u *User) IsStaff() bool   { return u.Role == RoleStaff }

// LoginFor derives a login from username: usernames without "@" get "@domain" appended.
func LoginFor(username, domain string) string {
	username = core.CleanString(username, true /* lower */)
	if strings.Contains(username, "@") || domain == "" {
		return username
	}
	return username + "@" + strings.TrimPrefix(core.CleanString(domain, true /* lower */), "@")
}

// NewUser contains information needed to create a new User identity and its profile.
type NewUser struct {
	Name     string `json:"name" validate:"required,max=200"`
	Username string `json:"username" validate:"required,max=150"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     Role   `json:"role" validate:"required,userrole"`
	BranchID string `json:"branch_id"`
}

func (nu *NewUser) Clean() {
	nu.Name = core.CleanString(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Role = Role(core.CleanString(string(nu.Role), true /* lower */))
	nu.BranchID = core.CleanString(nu.BranchID)
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Clean()
	return validate.Struct(nu)
}

type GetFilter struct {
	ID              string
	Username        string
	Email           string
	UsernameOrEmail []string // [username, email]; either may be empty
}

type QueryFilter struct {
	Search   string `query:"search"`
	Roles    []Role `query:"role"`
	BranchID string `query:"branch_id"`
	IsActive *bool  `query:"is_active"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.BranchID == "" && qf.IsActive == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.BranchID = core.CleanString(qf.BranchID)
}

// Matches reports whether usr satisfies every set field of the filter.
// Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
func (qf *QueryFilter) Matches(usr User) bool {
	if qf == nil {
		return true
	}
	if qf.Search != "" {
		s := strings.ToLower(qf.Search)
		if !(strings.Contains(strings.ToLower(usr.Name), s) ||
			strings.Contains(usr.Username, s) ||
			strings.Contains(usr.Email, s)) {
			return false
		}
	}
	if len(qf.Roles) > 0 {
		var found bool
		for _, r := range qf.Roles {
			if usr.Role == r {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if qf.BranchID != "" && usr.BranchID != qf.BranchID {
		return false
	}
	if qf.IsActive != nil && usr.IsActive != *qf.IsActive {
		return false
	}
	return true
}

// OrderingFields are the fields users can be ordered by.
var OrderingFields = []string{"name", "username", "email", "role", "created_at"}
