package db

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"pantree/measure"
	"pantree/models"
)

// dryRun builds statements against the postgres dialect without a server.
func dryRun(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=pantree dbname=pantree sslmode=disable",
	}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               gormlogger.Discard,
	})
	require.NoError(t, err)
	return gdb
}

func TestDropIngredientsKeepsListed(t *testing.T) {
	recipeID := uuid.NewString()
	keep := []string{uuid.NewString(), uuid.NewString()}

	stmt := dropIngredients(dryRun(t), recipeID, keep).Statement
	sql := stmt.SQL.String()
	assert.Contains(t, sql, `DELETE FROM "ingredients"`)
	assert.Contains(t, sql, "recipe_id = $1")
	assert.Contains(t, sql, "id NOT IN ($2,$3)")
	assert.Equal(t, []interface{}{recipeID, keep[0], keep[1]}, stmt.Vars)
}

func TestDropIngredientsWithNoneLeft(t *testing.T) {
	recipeID := uuid.NewString()

	stmt := dropIngredients(dryRun(t), recipeID, nil).Statement
	sql := stmt.SQL.String()
	assert.Contains(t, sql, `DELETE FROM "ingredients" WHERE recipe_id = $1`)
	assert.NotContains(t, sql, "NOT IN")
	assert.Equal(t, []interface{}{recipeID}, stmt.Vars)
}

func TestCountFoodRefs(t *testing.T) {
	foodID := uuid.NewString()
	var refs int64

	stmt := countFoodRefs(dryRun(t), foodID, &refs).Statement
	sql := stmt.SQL.String()
	assert.Contains(t, sql, `FROM "ingredients"`)
	assert.Contains(t, sql, "food_id = $1")
	assert.Equal(t, []interface{}{foodID}, stmt.Vars)
}

func TestUpsertFoodsOnConflict(t *testing.T) {
	food := models.NewFood("Oats")
	g := measure.New(100, measure.Gram)
	food.Measurement = &g

	recs := []FoodRecord{foodToRecord(food)}
	tx := upsert(dryRun(t)).Create(&recs)
	require.NoError(t, tx.Error)
	sql := tx.Statement.SQL.String()
	assert.Contains(t, sql, `INSERT INTO "foods"`)
	assert.Contains(t, sql, `ON CONFLICT ("id") DO UPDATE SET`)
}

func TestIngredientForeignKeys(t *testing.T) {
	gdb := dryRun(t)

	stmt := &gorm.Statement{DB: gdb}
	require.NoError(t, stmt.Parse(&IngredientRecord{}))
	rel := stmt.Schema.Relationships.Relations["Food"]
	require.NotNil(t, rel)
	constraint := rel.ParseConstraint()
	require.NotNil(t, constraint)
	assert.Equal(t, "RESTRICT", constraint.OnDelete)

	stmt = &gorm.Statement{DB: gdb}
	require.NoError(t, stmt.Parse(&RecipeRecord{}))
	rel = stmt.Schema.Relationships.Relations["Ingredients"]
	require.NotNil(t, rel)
	constraint = rel.ParseConstraint()
	require.NotNil(t, constraint)
	assert.Equal(t, "CASCADE", constraint.OnDelete)
}
