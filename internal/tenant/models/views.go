package models

import "time"

// TenantView is the cacheable read model of a Tenant.
type TenantView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (t *Tenant) View() TenantView {
	return TenantView{
		ID:        t.ID().String(),
		Name:      t.name,
		Status:    t.status,
		Version:   t.Version(),
		CreatedAt: t.CreatedAt(),
		UpdatedAt: t.UpdatedAt(),
	}
}

// OrganizationView is the cacheable read model of an Organization.
type OrganizationView struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
	Status   Status `json:"status"`
	Version  int64  `json:"version"`
}

func (o *Organization) View() OrganizationView {
	return OrganizationView{
		ID:       o.ID().String(),
		TenantID: idString(o.tenantID),
		Name:     o.name,
		Status:   o.status,
		Version:  o.Version(),
	}
}

// DepartmentView is the read model of a Department.
type DepartmentView struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	ParentID       string `json:"parent_id,omitempty"`
	Name           string `json:"name"`
	Version        int64  `json:"version"`
}

func (d *Department) View() DepartmentView {
	return DepartmentView{
		ID:             d.ID().String(),
		OrganizationID: idString(d.organizationID),
		ParentID:       idString(d.parentID),
		Name:           d.name,
		Version:        d.Version(),
	}
}
