package session

import (
	"field_inventory_backend/internal/forms"
	"field_inventory_backend/internal/schema/domain"

	"github.com/google/uuid"
)

// View is what the map client renders for a session.
type View struct {
	State         string               `json:"state"`
	ProjectID     uuid.UUID            `json:"projectId"`
	AddEnabled    bool                 `json:"addEnabled"`
	OfferedTypes  []domain.FeatureType `json:"offeredTypes,omitempty"`
	SelectedType  *domain.FeatureType  `json:"selectedType,omitempty"`
	Marker        *Position            `json:"marker,omitempty"`
	Editing       *EditingView         `json:"editing,omitempty"`
	PointsVersion int64                `json:"pointsVersion"`
}

// EditingView describes the open attribute form.
type EditingView struct {
	FeatureID     *uuid.UUID        `json:"featureId"`
	TechnicalID   string            `json:"technicalId,omitempty"`
	FeatureTypeID uuid.UUID         `json:"featureTypeId"`
	Position      Position          `json:"position"`
	Estado        string            `json:"estado,omitempty"`
	Mode          string            `json:"mode"`
	Controls      []forms.Control   `json:"controls"`
	Errors        map[string]string `json:"errors,omitempty"`
	Pending       bool              `json:"pending"`
	LastError     string            `json:"lastError,omitempty"`
}

// View returns a consistent snapshot of the session.
func (m *Machine) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := View{
		State:         m.state.String(),
		ProjectID:     m.projectID,
		AddEnabled:    m.state == Idle && m.pendingSaves == 0,
		PointsVersion: m.pointsVersion,
	}
	if len(m.offered) > 0 {
		v.OfferedTypes = append([]domain.FeatureType(nil), m.offered...)
	}
	if m.selected != nil {
		selected := *m.selected
		v.SelectedType = &selected
	}
	if m.marker != nil {
		pos := m.marker.Position()
		v.Marker = &pos
	}
	if e := m.edit; e != nil {
		v.Editing = &EditingView{
			FeatureID:     e.featureID,
			TechnicalID:   e.technicalID,
			FeatureTypeID: e.typeID,
			Position:      e.position,
			Estado:        e.estado,
			Mode:          e.form.Mode().String(),
			Controls:      e.form.Controls(),
			Errors:        e.formErrors,
			Pending:       e.pending,
			LastError:     e.lastError,
		}
	}
	return v
}
