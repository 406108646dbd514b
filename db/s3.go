package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"pantree/models"
)

// S3API is the subset of the S3 client the image store needs.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// RecipeLookup is used to check a recipe exists before touching its image.
type RecipeLookup interface {
	Recipe(ctx context.Context, id uuid.UUID) (*models.Recipe, error)
}

// S3ImageStore keeps recipe images as objects under recipes/<id>. Existence
// of the recipe itself is checked against the main store.
type S3ImageStore struct {
	Client  S3API
	Bucket  string
	Recipes RecipeLookup
}

// NewS3ImageStore loads the default AWS credential chain for region.
func NewS3ImageStore(ctx context.Context, region, bucket string, recipes RecipeLookup) (*S3ImageStore, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &S3ImageStore{Client: s3.NewFromConfig(cfg), Bucket: bucket, Recipes: recipes}, nil
}

func imageKey(id uuid.UUID) string { return "recipes/" + id.String() }

func isMissing(err error) bool {
	var noKey *s3types.NoSuchKey
	var notFound *s3types.NotFound
	return errors.As(err, &noKey) || errors.As(err, &notFound)
}

func (s *S3ImageStore) checkRecipe(ctx context.Context, id uuid.UUID) error {
	_, err := s.Recipes.Recipe(ctx, id)
	return err
}

func (s *S3ImageStore) RecipeImage(ctx context.Context, recipeID uuid.UUID) (*Image, error) {
	if err := s.checkRecipe(ctx, recipeID); err != nil {
		return nil, err
	}
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(imageKey(recipeID)),
	})
	if isMissing(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get recipe image: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read recipe image: %w", err)
	}
	return &Image{ContentType: aws.ToString(out.ContentType), Data: data}, nil
}

func (s *S3ImageStore) SetRecipeImage(ctx context.Context, recipeID uuid.UUID, img Image) error {
	if err := s.checkRecipe(ctx, recipeID); err != nil {
		return err
	}
	_, err := s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(imageKey(recipeID)),
		Body:        bytes.NewReader(img.Data),
		ContentType: aws.String(img.ContentType),
	})
	if err != nil {
		return fmt.Errorf("put recipe image: %w", err)
	}
	return nil
}

func (s *S3ImageStore) DeleteRecipeImage(ctx context.Context, recipeID uuid.UUID) error {
	if err := s.checkRecipe(ctx, recipeID); err != nil {
		return err
	}
	key := aws.String(imageKey(recipeID))
	_, err := s.Client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.Bucket), Key: key})
	if isMissing(err) {
		return ErrNoImage
	}
	if err != nil {
		return fmt.Errorf("head recipe image: %w", err)
	}
	if _, err := s.Client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.Bucket), Key: key}); err != nil {
		return fmt.Errorf("delete recipe image: %w", err)
	}
	return nil
}

// PurgeRecipeImage removes the object without checking the recipe, for use
// after the recipe itself is gone.
func (s *S3ImageStore) PurgeRecipeImage(ctx context.Context, recipeID uuid.UUID) error {
	_, err := s.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(imageKey(recipeID)),
	})
	if err != nil && !isMissing(err) {
		return fmt.Errorf("purge recipe image: %w", err)
	}
	return nil
}
