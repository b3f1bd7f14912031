package importer

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/pathways/core"
	"github.com/trezcool/pathways/core/catalog"
	"github.com/trezcool/pathways/core/user"
)

// Column names, as found in import and export files.
const (
	ColPath         = "path"
	ColCategory     = "category"
	ColMaterialName = "material name"
	ColMaterial     = "material" // synonym of ColMaterialName
	ColType         = "type"
	ColURL          = "url"

	ColBranchName = "branch name"
	ColRegion     = "region"

	ColName     = "name"
	ColUsername = "username"
	ColPassword = "password"
	ColRole     = "role"
	ColBranch   = "branch"
)

var (
	MaterialsHeader = []string{ColPath, ColCategory, ColMaterialName, ColType, ColURL}
	BranchesHeader  = []string{ColBranchName, ColRegion}
	UsersHeader     = []string{ColName, ColUsername, ColPassword, ColRole, ColBranch}

	rowRoleTag  = "rowrole"
	rowRoleText = "invalid role"

	rowBranchTag  = "rowbranch"
	rowBranchText = "branch is required for staff and manager users"
)

// InitValidators registers the import row validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(userRowStructValidation, UserRow{})
	core.RegisterCustomTranslation(validate, translator, rowRoleTag, rowRoleText)
	core.RegisterCustomTranslation(validate, translator, rowBranchTag, rowBranchText)
}

type MaterialRow struct {
	Path     string               `csv:"path" validate:"required,max=200"`
	Category string               `csv:"category" validate:"required,max=200"`
	Name     string               `csv:"material name" validate:"required,max=200"`
	Type     catalog.MaterialType `csv:"type"`
	URL      string               `csv:"url"`
}

// materialRow reads a MaterialRow from row. Unknown or missing types resolve to fallback.
func materialRow(row Row, fallback catalog.MaterialType) MaterialRow {
	name := row[ColMaterialName]
	if name == "" {
		name = row[ColMaterial]
	}
	return MaterialRow{
		Path:     row[ColPath],
		Category: row[ColCategory],
		Name:     name,
		Type:     catalog.MaterialTypeOr(row[ColType], fallback),
		URL:      row[ColURL],
	}
}

func (mr MaterialRow) Row() Row {
	return Row{
		ColPath:         mr.Path,
		ColCategory:     mr.Category,
		ColMaterialName: mr.Name,
		ColType:         string(mr.Type),
		ColURL:          mr.URL,
	}
}

type BranchRow struct {
	Name   string `csv:"branch name" validate:"required,max=200"`
	Region string `csv:"region" validate:"max=200"`
}

func branchRow(row Row) BranchRow {
	return BranchRow{Name: row[ColBranchName], Region: row[ColRegion]}
}

func (br BranchRow) Row() Row {
	return Row{ColBranchName: br.Name, ColRegion: br.Region}
}

type UserRow struct {
	Name     string    `csv:"name" validate:"required,max=200"`
	Username string    `csv:"username" validate:"required,max=150"`
	Password string    `csv:"password" validate:"required"`
	Role     user.Role `csv:"role" validate:"required"`
	Branch   string    `csv:"branch" validate:"max=200"`
}

func userRow(row Row) UserRow {
	return UserRow{
		Name:     row[ColName],
		Username: core.CleanString(row[ColUsername], true /* lower */),
		Password: row[ColPassword],
		Role:     user.Role(core.CleanString(row[ColRole], true /* lower */)),
		Branch:   row[ColBranch],
	}
}

// normalize drops the branch of admin rows.
func (ur *UserRow) normalize() {
	if ur.Role == user.RoleAdmin {
		ur.Branch = ""
	}
}

// Row renders ur for export; passwords are never exported.
func (ur UserRow) Row() Row {
	return Row{
		ColName:     ur.Name,
		ColUsername: ur.Username,
		ColPassword: "",
		ColRole:     string(ur.Role),
		ColBranch:   ur.Branch,
	}
}

// userRowStructValidation checks the role, and that staff and manager rows name a branch.
func userRowStructValidation(sl validator.StructLevel) {
	ur, ok := sl.Current().Interface().(UserRow)
	if !ok || ur.Role == "" {
		return
	}
	role, ok := user.ParseRole(string(ur.Role))
	if !ok {
		sl.ReportError(ur.Role, ColRole, "Role", rowRoleTag, "")
		return
	}
	if role.NeedsBranch() && ur.Branch == "" {
		sl.ReportError(ur.Branch, ColBranch, "Branch", rowBranchTag, "")
	}
}
