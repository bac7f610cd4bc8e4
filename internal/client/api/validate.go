package api

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/atinyakov/devtrack/internal/models"
)

// NewValidator returns the validator used when no WithValidator option
// is given.
func NewValidator() *validator.Validate {
	return models.NewValidator()
}

func (c *Client) check(in any) error {
	err := c.validate.Struct(in)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return &ValidationError{Message: err.Error()}
	}

	fields := make([]string, 0, len(ve))
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		fields = append(fields, fe.Field())
		msgs = append(msgs, models.FieldMessage(fe))
	}
	return &ValidationError{Message: summary(in, fields, msgs), Fields: fields}
}

// summary keeps the wording users already know for missing required fields.
func summary(in any, fields, msgs []string) string {
	has := func(names ...string) bool {
		for _, f := range fields {
			for _, n := range names {
				if f == n {
					return true
				}
			}
		}
		return false
	}

	switch in.(type) {
	case *models.ProjectInput, *models.ProjectPatch:
		if has("name") {
			return "Project name is required"
		}
	case *models.TaskInput, *models.BugInput, *models.TaskPatch, *models.BugPatch:
		if has("title", "project_id") {
			return "Title and Project are required"
		}
	}
	return strings.Join(msgs, "; ")
}
