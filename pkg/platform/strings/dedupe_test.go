package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitList(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   []string
	}{
		{"nothing", nil, nil},
		{"blank", []string{"", " , ,"}, nil},
		{"single", []string{"localhost:9092"}, []string{"localhost:9092"}},
		{"comma separated", []string{"a:9092, b:9092 ,c:9092"}, []string{"a:9092", "b:9092", "c:9092"}},
		{"repeated values", []string{"PENDING", "PHI_BLOCKED,PENDING"}, []string{"PENDING", "PHI_BLOCKED"}},
		{"first occurrence wins", []string{"b,a,b,a"}, []string{"b", "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitList(tt.values...))
		})
	}
}
