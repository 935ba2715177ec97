package workflows

import (
	"context"

	"go.uber.org/zap"
)

// PersonInput describes a person contact. The API takes form-encoded fields
// with booleans and arrays as literal strings ("false", "[]"), not JSON types.
type PersonInput struct {
	FirstName string
	LastName  string
	Email     string
}

// CompanyInput describes a company contact.
type CompanyInput struct {
	CompanyName string
	Email       string
}

// Contact is the parsed payload returned by the contact endpoints.
type Contact struct {
	ID          int64  `json:"cont_id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	CompanyName string `json:"company_name"`
	Email       string `json:"email"`
}

// CreatePerson creates a person contact.
func (c *Client) CreatePerson(ctx context.Context, input PersonInput) (*Contact, error) {
	payload := map[string]string{
		"FirstName": input.FirstName,
		"LastName":  input.LastName,
		"Email":     input.Email,
		"IsCompany": "false",
		"Phones":    "[]",
		"Addresses": "[]",
		"Tags":      "[]",
	}
	result, err := c.gw.Post(ctx, c.session, "/api2/contact/person", payload, nil)
	if err != nil {
		return nil, err
	}
	if err := result.Err(); err != nil {
		return nil, err
	}

	var contact Contact
	if err := decode(result, &contact); err != nil {
		return nil, err
	}
	c.logger.Info("Created person contact", zap.Int64("contact_id", contact.ID), zap.String("email", input.Email))
	return &contact, nil
}

// CreateCompany creates a company contact.
func (c *Client) CreateCompany(ctx context.Context, input CompanyInput) (*Contact, error) {
	payload := map[string]string{
		"CompanyName": input.CompanyName,
		"Email":       input.Email,
		"IsCompany":   "true",
		"Phones":      "[]",
		"Addresses":   "[]",
		"Tags":        "[]",
	}
	result, err := c.gw.Post(ctx, c.session, "/api2/contact/company", payload, nil)
	if err != nil {
		return nil, err
	}
	if err := result.Err(); err != nil {
		return nil, err
	}

	var contact Contact
	if err := decode(result, &contact); err != nil {
		return nil, err
	}
	c.logger.Info("Created company contact", zap.Int64("contact_id", contact.ID), zap.String("company", input.CompanyName))
	return &contact, nil
}
