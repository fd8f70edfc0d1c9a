// Package domain defines the permission catalog: the closed set of named
// capabilities that roles and API keys can reference.
//
// The catalog is an immutable, process-wide constant loaded at startup.
// External input naming a permission is validated once, at the boundary,
// via Parse; business logic only ever sees known Name values.
package domain

import (
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/allisson/agentauth/internal/errors"
)

// Name is a capability string from the catalog (e.g. "read_customer").
// Names are stored canonical lower-case; membership checks are case-insensitive.
type Name string

// Module groups related capabilities in the catalog.
type Module string

// Catalog modules.
const (
	ModuleCustomer    Module = "customer"
	ModuleOpportunity Module = "opportunity"
	ModuleTeam        Module = "team"
	ModuleAdmin       Module = "admin"
	ModuleAgent       Module = "agent"
)

// Catalog capability names.
const (
	ReadCustomer   Name = "read_customer"
	CreateCustomer Name = "create_customer"
	UpdateCustomer Name = "update_customer"
	DeleteCustomer Name = "delete_customer"

	ReadOpportunity   Name = "read_opportunity"
	CreateOpportunity Name = "create_opportunity"
	UpdateOpportunity Name = "update_opportunity"
	DeleteOpportunity Name = "delete_opportunity"

	ReadTeam   Name = "read_team"
	ManageTeam Name = "manage_team"

	ManageRoles    Name = "manage_roles"
	ManageUsers    Name = "manage_users"
	ViewUsageLogs  Name = "view_usage_logs"
	ManageSettings Name = "manage_settings"

	ManageAgents  Name = "manage_agents"
	ManageAPIKeys Name = "manage_api_keys"
	ManageTools   Name = "manage_tools"
	ExecuteTools  Name = "execute_tools"
)

// Permission is one catalog entry. The catalog is seeded once at deployment
// time and is read-only at runtime.
type Permission struct {
	ID          uuid.UUID
	Name        Name
	Description string
	Module      Module
}

// catalog is the full capability set, grouped by module.
var catalog = []Permission{
	{Name: ReadCustomer, Description: "View customer records", Module: ModuleCustomer},
	{Name: CreateCustomer, Description: "Create customer records", Module: ModuleCustomer},
	{Name: UpdateCustomer, Description: "Update customer records", Module: ModuleCustomer},
	{Name: DeleteCustomer, Description: "Delete customer records", Module: ModuleCustomer},

	{Name: ReadOpportunity, Description: "View opportunity records", Module: ModuleOpportunity},
	{Name: CreateOpportunity, Description: "Create opportunity records", Module: ModuleOpportunity},
	{Name: UpdateOpportunity, Description: "Update opportunity records", Module: ModuleOpportunity},
	{Name: DeleteOpportunity, Description: "Delete opportunity records", Module: ModuleOpportunity},

	{Name: ReadTeam, Description: "View team membership", Module: ModuleTeam},
	{Name: ManageTeam, Description: "Manage team membership", Module: ModuleTeam},

	{Name: ManageRoles, Description: "Create, update and delete tenant roles", Module: ModuleAdmin},
	{Name: ManageUsers, Description: "Assign and revoke user roles", Module: ModuleAdmin},
	{Name: ViewUsageLogs, Description: "View API key and tool usage logs", Module: ModuleAdmin},
	{Name: ManageSettings, Description: "Manage tenant settings", Module: ModuleAdmin},

	{Name: ManageAgents, Description: "Manage agents", Module: ModuleAgent},
	{Name: ManageAPIKeys, Description: "Issue and revoke agent API keys", Module: ModuleAgent},
	{Name: ManageTools, Description: "Register and manage agent tools", Module: ModuleAgent},
	{Name: ExecuteTools, Description: "Invoke agent tools", Module: ModuleAgent},
}

// byName indexes the catalog for Parse.
var byName = func() map[Name]Permission {
	m := make(map[Name]Permission, len(catalog))
	for _, p := range catalog {
		m[p.Name] = p
	}
	return m
}()

// Catalog returns a copy of the full permission catalog.
func Catalog() []Permission {
	out := make([]Permission, len(catalog))
	copy(out, catalog)
	return out
}

// Parse validates an externally-supplied permission name against the catalog.
// Input is canonicalized to lower-case. Unknown names fail with ErrInvalidInput.
func Parse(s string) (Name, error) {
	name := Name(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := byName[name]; !ok {
		return "", apperrors.Wrapf(apperrors.ErrInvalidInput, "unknown permission %q", s)
	}
	return name, nil
}

// ParseAll validates a list of permission names, returning the canonical forms.
func ParseAll(names []string) ([]Name, error) {
	out := make([]Name, 0, len(names))
	for _, s := range names {
		name, err := Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, nil
}

// Strings converts canonical names back to their string form for storage.
func Strings(names []Name) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, string(name))
	}
	return out
}

// Missing returns the required permissions absent from granted, using
// case-insensitive membership. An empty result means granted is a superset
// of required.
func Missing(granted, required []string) []string {
	have := make(map[string]struct{}, len(granted))
	for _, g := range granted {
		have[strings.ToLower(g)] = struct{}{}
	}

	var missing []string
	for _, r := range required {
		if _, ok := have[strings.ToLower(r)]; !ok {
			missing = append(missing, r)
		}
	}
	return missing
}
