package services

import (
	"imgpub/internal/storage"
	"imgpub/internal/user"
)

type CompositeService struct {
	LinkService      LinkService
	MigrationService MigrationService
	UploadService    UploadService
	OwnerService     user.OwnerService
	ConfigStore      storage.ConfigStore
}

func NewCompositeService(
	linkService LinkService,
	migrationService MigrationService,
	uploadService UploadService,
	ownerService user.OwnerService,
	configStore storage.ConfigStore,
) *CompositeService {
	return &CompositeService{
		LinkService:      linkService,
		MigrationService: migrationService,
		UploadService:    uploadService,
		OwnerService:     ownerService,
		ConfigStore:      configStore,
	}
}
