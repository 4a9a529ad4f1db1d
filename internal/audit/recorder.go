// backend/internal/audit/recorder.go
package audit

import (
	"encoding/json"
	"log"

	"gorm.io/gorm"

	"assessment-system/internal/models"
)

// Recorder appends to the platform audit trail. Recording is best-effort:
// a failed audit write is logged and never fails the operation it describes.
type Recorder struct {
	db *gorm.DB
}

func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db}
}

func (r *Recorder) Record(actorID uint, action, entityType string, entityID uint, detail interface{}) {
	entry := models.AuditLog{
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
	}

	if detail != nil {
		data, err := json.Marshal(detail)
		if err != nil {
			log.Printf("Error marshaling audit detail for %s: %v", action, err)
		} else {
			entry.Detail = string(data)
		}
	}

	if err := r.db.Create(&entry).Error; err != nil {
		log.Printf("Error recording audit entry %s: %v", action, err)
	}
}
