package mysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountSql(t *testing.T) {
	assert.Equal(t, "select count(*) from `orders`", countSql("orders"))
	assert.Equal(t, "select count(*) from `odd``name`", countSql("odd`name"))
}
