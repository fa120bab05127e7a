package services

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Tafsirchy/thikana/internal/db"
	"github.com/Tafsirchy/thikana/internal/email"
	"github.com/Tafsirchy/thikana/internal/models"
)

// IEmailTemplateService defines the interface for email template operations.
type IEmailTemplateService interface {
	GetTemplate(ctx context.Context, templateID, locale string) (*models.EmailTemplate, error)
}

// EmailTemplateService handles operations related to email templates
type EmailTemplateService struct {
	db *mongo.Database
}

// NewEmailTemplateService creates a new instance of EmailTemplateService
func NewEmailTemplateService(database *mongo.Database) *EmailTemplateService {
	return &EmailTemplateService{db: database}
}

// GetTemplate retrieves an email template by ID and locale, falling back to
// the default locale and then to the built-in templates.
func (s *EmailTemplateService) GetTemplate(ctx context.Context, templateID string, locale string) (*models.EmailTemplate, error) {
	locales := []string{locale}
	if locale != email.DefaultLocale {
		locales = append(locales, email.DefaultLocale)
	}

	collection := s.db.Collection(db.CollEmailTemplates)
	for _, loc := range locales {
		var tmpl models.EmailTemplate
		err := collection.FindOne(ctx, bson.M{"template_id": templateID, "locale": loc}).Decode(&tmpl)
		if err == nil {
			return &tmpl, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("error retrieving template: %w", err)
		}
	}

	if fallback, ok := email.FallbackTemplates[templateID]; ok {
		return &fallback, nil
	}
	return nil, fmt.Errorf("template %s (locale: %s): %w", templateID, locale, ErrNotFound)
}

// SaveTemplate upserts an email template.
func (s *EmailTemplateService) SaveTemplate(ctx context.Context, tmpl *models.EmailTemplate) error {
	filter := bson.M{"template_id": tmpl.TemplateID, "locale": tmpl.Locale}
	update := bson.M{"$set": bson.M{"subject": tmpl.Subject, "body": tmpl.Body}}
	opts := options.Update().SetUpsert(true)

	if _, err := s.db.Collection(db.CollEmailTemplates).UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("error saving template: %w", err)
	}
	return nil
}

// DeleteTemplate deletes an email template from the database
func (s *EmailTemplateService) DeleteTemplate(ctx context.Context, templateID string, locale string) error {
	_, err := s.db.Collection(db.CollEmailTemplates).DeleteOne(ctx, bson.M{"template_id": templateID, "locale": locale})
	if err != nil {
		return fmt.Errorf("error deleting template: %w", err)
	}
	return nil
}
