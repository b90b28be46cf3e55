package storage

import (
	"errors"
	"fmt"
	"testing"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestTranslateError(t *testing.T) {
	other := errors.New("connection refused")

	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"record not found", gorm.ErrRecordNotFound, ErrNotFound},
		{"wrapped record not found", fmt.Errorf("query: %w", gorm.ErrRecordNotFound), ErrNotFound},
		{"gorm duplicated key", gorm.ErrDuplicatedKey, ErrDuplicateKey},
		{"driver 1062", &gomysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, ErrDuplicateKey},
		{"driver other code", &gomysql.MySQLError{Number: 1213, Message: "Deadlock"}, nil},
		{"other", other, other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translateError(tt.in)
			if tt.want == nil && tt.in != nil {
				// 未识别的错误原样返回
				assert.Equal(t, tt.in, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
