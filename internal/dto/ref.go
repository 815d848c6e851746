package dto

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/noah-isme/classroom-portal/internal/models"
)

// Ref decodes an upstream reference that is either a bare id string or a
// populated object. Callers only ever see the normalized id and name.
type Ref struct {
	ID   string
	Name string
}

type refObject struct {
	ID       string `json:"id"`
	MongoID  string `json:"_id"`
	Name     string `json:"name"`
	FullName string `json:"fullName"`
	Title    string `json:"title"`
}

// UnmarshalJSON accepts `"id"`, `{"_id": "...", "name": "..."}` and null.
func (r *Ref) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = Ref{}
		return nil
	}
	if data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*r = Ref{ID: id}
		return nil
	}
	if data[0] != '{' {
		return fmt.Errorf("reference must be a string or object, got %s", string(data))
	}
	var obj refObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*r = Ref{ID: firstNonEmpty(obj.ID, obj.MongoID), Name: firstNonEmpty(obj.Name, obj.FullName, obj.Title)}
	return nil
}

// Model converts the reference into the canonical model.
func (r Ref) Model() models.Ref {
	return models.Ref{ID: r.ID, Name: r.Name}
}

// Role decodes a role sent either as a string or as an object across API versions.
type Role struct {
	Value models.UserRole
}

type roleObject struct {
	Name string `json:"name"`
	Role string `json:"role"`
	Type string `json:"type"`
	Slug string `json:"slug"`
}

// UnmarshalJSON accepts `"teacher"`, `{"name": "teacher"}` and null.
func (r *Role) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = Role{}
		return nil
	}
	if data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		*r = Role{Value: models.ParseRole(raw)}
		return nil
	}
	var obj roleObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("decode role: %w", err)
	}
	*r = Role{Value: models.ParseRole(firstNonEmpty(obj.Name, obj.Role, obj.Type, obj.Slug))}
	return nil
}

// NormalizeRole converts an already-decoded claim value (string or map) into the canonical role.
func NormalizeRole(value interface{}) models.UserRole {
	switch v := value.(type) {
	case string:
		return models.ParseRole(v)
	case map[string]interface{}:
		for _, key := range []string{"name", "role", "type", "slug"} {
			if s, ok := v[key].(string); ok && s != "" {
				return models.ParseRole(s)
			}
		}
	}
	return models.RoleUnknown
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
