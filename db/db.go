package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pantree/models"
)

// MongoStore keeps foods and recipes in separate collections. Ingredients are
// embedded in their recipe and point at foods by id.
type MongoStore struct {
	Client           *mongo.Client
	FoodsCollection  *mongo.Collection
	RecipeCollection *mongo.Collection
	ImagesCollection *mongo.Collection
}

// NewMongoStore connects, pings and ensures indexes.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	d := client.Database(database)
	s := &MongoStore{
		Client:           client,
		FoodsCollection:  d.Collection("foods"),
		RecipeCollection: d.Collection("recipes"),
		ImagesCollection: d.Collection("recipe_images"),
	}
	if err := s.CreateIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

// CreateIndexes indexes the food reference of embedded ingredients, used by
// the in-use check and the recipes-by-food lookup.
func (s *MongoStore) CreateIndexes(ctx context.Context) error {
	_, err := s.RecipeCollection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "ingredients.foodId", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create recipe indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.Client.Disconnect(ctx)
}

func byID(id string) bson.M { return bson.M{"_id": id} }

func (s *MongoStore) Foods(ctx context.Context) ([]*models.Food, error) {
	cursor, err := s.FoodsCollection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("find foods: %w", err)
	}
	defer cursor.Close(ctx)

	var recs []FoodRecord
	if err := cursor.All(ctx, &recs); err != nil {
		return nil, fmt.Errorf("decode foods: %w", err)
	}
	out := make([]*models.Food, 0, len(recs))
	for _, rec := range recs {
		f, err := foodFromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func (s *MongoStore) Food(ctx context.Context, id uuid.UUID) (*models.Food, error) {
	var rec FoodRecord
	err := s.FoodsCollection.FindOne(ctx, byID(id.String())).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find food: %w", err)
	}
	return foodFromRecord(rec)
}

func (s *MongoStore) SaveFood(ctx context.Context, food *models.Food) error {
	return s.putFoods(ctx, foodToRecord(food))
}

func (s *MongoStore) putFoods(ctx context.Context, recs ...FoodRecord) error {
	upsert := options.Replace().SetUpsert(true)
	for _, rec := range recs {
		if _, err := s.FoodsCollection.ReplaceOne(ctx, byID(rec.ID), rec, upsert); err != nil {
			return fmt.Errorf("save food %s: %w", rec.ID, err)
		}
	}
	return nil
}

func (s *MongoStore) DeleteFood(ctx context.Context, id uuid.UUID) error {
	key := id.String()
	n, err := s.RecipeCollection.CountDocuments(ctx, bson.M{"ingredients.foodId": key})
	if err != nil {
		return fmt.Errorf("count food references: %w", err)
	}
	if n > 0 {
		if _, err := s.Food(ctx, id); err != nil {
			return err
		}
		return ErrInUse
	}
	res, err := s.FoodsCollection.DeleteOne(ctx, byID(key))
	if err != nil {
		return fmt.Errorf("delete food: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) RecipesUsingFood(ctx context.Context, foodID uuid.UUID) ([]*models.Recipe, error) {
	if _, err := s.Food(ctx, foodID); err != nil {
		return nil, err
	}
	return s.findRecipes(ctx, bson.M{"ingredients.foodId": foodID.String()})
}

func (s *MongoStore) Recipes(ctx context.Context) ([]*models.Recipe, error) {
	return s.findRecipes(ctx, bson.M{})
}

func (s *MongoStore) findRecipes(ctx context.Context, filter bson.M) ([]*models.Recipe, error) {
	cursor, err := s.RecipeCollection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find recipes: %w", err)
	}
	defer cursor.Close(ctx)

	var recs []RecipeRecord
	if err := cursor.All(ctx, &recs); err != nil {
		return nil, fmt.Errorf("decode recipes: %w", err)
	}
	foods, err := s.foodsFor(ctx, recs...)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Recipe, 0, len(recs))
	for _, rec := range recs {
		r, err := recipeFromRecord(rec, foods)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *MongoStore) foodsFor(ctx context.Context, recs ...RecipeRecord) (map[string]*models.Food, error) {
	ids := foodIDs(recs...)
	if len(ids) == 0 {
		return map[string]*models.Food{}, nil
	}
	cursor, err := s.FoodsCollection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("find ingredient foods: %w", err)
	}
	defer cursor.Close(ctx)

	var foods []FoodRecord
	if err := cursor.All(ctx, &foods); err != nil {
		return nil, fmt.Errorf("decode ingredient foods: %w", err)
	}
	return foodIndex(foods)
}

func (s *MongoStore) Recipe(ctx context.Context, id uuid.UUID) (*models.Recipe, error) {
	var rec RecipeRecord
	err := s.RecipeCollection.FindOne(ctx, byID(id.String())).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find recipe: %w", err)
	}
	foods, err := s.foodsFor(ctx, rec)
	if err != nil {
		return nil, err
	}
	return recipeFromRecord(rec, foods)
}

func (s *MongoStore) SaveRecipe(ctx context.Context, recipe *models.Recipe) error {
	rec, foods := recipeToRecord(recipe)
	if err := s.putFoods(ctx, foods...); err != nil {
		return err
	}
	_, err := s.RecipeCollection.ReplaceOne(ctx, byID(rec.ID), rec, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save recipe: %w", err)
	}
	return nil
}

func (s *MongoStore) DeleteRecipe(ctx context.Context, id uuid.UUID) error {
	res, err := s.RecipeCollection.DeleteOne(ctx, byID(id.String()))
	if err != nil {
		return fmt.Errorf("delete recipe: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	if _, err := s.ImagesCollection.DeleteOne(ctx, byID(id.String())); err != nil {
		return fmt.Errorf("delete recipe image: %w", err)
	}
	return nil
}

func (s *MongoStore) recipeExists(ctx context.Context, id string) error {
	n, err := s.RecipeCollection.CountDocuments(ctx, byID(id))
	if err != nil {
		return fmt.Errorf("count recipes: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) RecipeImage(ctx context.Context, recipeID uuid.UUID) (*Image, error) {
	key := recipeID.String()
	if err := s.recipeExists(ctx, key); err != nil {
		return nil, err
	}
	var rec ImageRecord
	err := s.ImagesCollection.FindOne(ctx, byID(key)).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find recipe image: %w", err)
	}
	return &Image{ContentType: rec.ContentType, Data: rec.Data}, nil
}

func (s *MongoStore) SetRecipeImage(ctx context.Context, recipeID uuid.UUID, img Image) error {
	key := recipeID.String()
	if err := s.recipeExists(ctx, key); err != nil {
		return err
	}
	rec := ImageRecord{RecipeID: key, ContentType: img.ContentType, Data: img.Data}
	if _, err := s.ImagesCollection.ReplaceOne(ctx, byID(key), rec, options.Replace().SetUpsert(true)); err != nil {
		return fmt.Errorf("save recipe image: %w", err)
	}
	return nil
}

func (s *MongoStore) DeleteRecipeImage(ctx context.Context, recipeID uuid.UUID) error {
	key := recipeID.String()
	if err := s.recipeExists(ctx, key); err != nil {
		return err
	}
	res, err := s.ImagesCollection.DeleteOne(ctx, byID(key))
	if err != nil {
		return fmt.Errorf("delete recipe image: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNoImage
	}
	return nil
}
