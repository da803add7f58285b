package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nihalkurra/student-collab-hub/pkg/model"
)

func TestRegexQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"alice", "alice"},
		{"c.s", `c\.s`},
		{"a+b", `a\+b`},
		{"(x)", `\(x\)`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, regexQuote(tt.in))
	}
}

func TestSummariesForKeepsOrderAndDropsDangling(t *testing.T) {
	a, b, c := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()
	m := map[primitive.ObjectID]model.UserSummary{
		a: {ID: a, Username: "a"},
		c: {ID: c, Username: "c"},
	}
	got := summariesFor([]primitive.ObjectID{c, b, a}, m)
	assert.Len(t, got, 2)
	assert.Equal(t, "c", got[0].Username)
	assert.Equal(t, "a", got[1].Username)
}

func TestContainsID(t *testing.T) {
	a, b := primitive.NewObjectID(), primitive.NewObjectID()
	assert.True(t, containsID([]primitive.ObjectID{a, b}, a))
	assert.False(t, containsID([]primitive.ObjectID{a}, b))
	assert.False(t, containsID(nil, a))
}
