package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"facturio/internal/core/entity"
	"facturio/internal/core/id"
)

type MockCatalog struct {
	entity.BaseCatalog
	Name  string `db:"name" json:"name"`
	Email string `db:"email" json:"email"`
}

func TestExtractDBColumns_EmbeddedFields(t *testing.T) {
	cols := ExtractDBColumns[MockCatalog]()

	expectedCols := []string{
		"id", "deletion_mark", "version", "name", "email",
	}

	for _, expected := range expectedCols {
		assert.Contains(t, cols, expected)
	}
}

func TestStructToMap_EmbeddedFields(t *testing.T) {
	cat := MockCatalog{
		BaseCatalog: entity.BaseCatalog{
			BaseEntity: entity.BaseEntity{
				ID:           id.New(),
				DeletionMark: true,
				Version:      5,
			},
		},
		Name:  "Dupont SARL",
		Email: "contact@dupont.fr",
	}

	m := StructToMap(cat)

	assert.Equal(t, cat.ID, m["id"])
	assert.Equal(t, true, m["deletion_mark"])
	assert.Equal(t, 5, m["version"])
	assert.Equal(t, "Dupont SARL", m["name"])
	assert.Equal(t, "contact@dupont.fr", m["email"])
}

func TestStructToMap_IgnoresUntaggedFields(t *testing.T) {
	type withUntagged struct {
		Name   string `db:"name"`
		Cached string `db:"-"`
		Scratch string
	}

	m := StructToMap(withUntagged{Name: "x", Cached: "y", Scratch: "z"})

	assert.Equal(t, map[string]any{"name": "x"}, m)
}
