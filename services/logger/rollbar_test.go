package logsvc

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/pathways/core"
	"github.com/trezcool/pathways/core/user"
)

func newTestLogger(buf *bytes.Buffer) *RollbarLogger {
	return NewRollbarLogger(log.New(buf, "", 0), &core.Config{Env: "TEST", TestMode: true})
}

func TestRollbarLogger_prepare(t *testing.T) {
	l := newTestLogger(new(bytes.Buffer))
	extras := map[string]interface{}{"kind": "users"}
	usr := user.User{ID: "1", Username: "admin"}

	args := l.prepare("users import: 1 succeeded, 0 failed", []interface{}{extras, usr, user.User{ID: "2"}})
	assert.Equal(t, []interface{}{"users import: 1 succeeded, 0 failed", extras}, args)
}

func TestRollbarLogger_print(t *testing.T) {
	buf := new(bytes.Buffer)
	l := newTestLogger(buf)

	l.Warn("branches import: 1 succeeded, 1 failed", map[string]interface{}{"failed": 1}, user.User{ID: "1"})
	assert.Equal(t, "WARN: branches import: 1 succeeded, 1 failed\nmap[failed:1]\n", buf.String())
}
