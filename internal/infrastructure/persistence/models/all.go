package models

// All returns every model, in dependency order, for AutoMigrate
func All() []any {
	return []any{
		&TemplateModel{},
		&ArtifactModel{},
		&QuotaRecordModel{},
		&QuotaReservationModel{},
	}
}
