// seed inserts development sample data for local testing. Run via ./scripts/seed.sh.
// Idempotent: skips inserts if the dev admin (admin@example.com) already exists.
// The role catalog itself is seeded by the role_permissions migration, not here.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"property-platform/access-core/internal/authz"
	"property-platform/access-core/internal/config"
	"property-platform/access-core/internal/db"
	"property-platform/access-core/internal/security"
	userdomain "property-platform/access-core/internal/user/domain"
	userrepo "property-platform/access-core/internal/user/repository"
)

const (
	devAdminEmail   = "admin@example.com"
	devOpsEmail     = "ops@example.com"
	devManagerEmail = "manager@example.com"
	devTechEmail    = "tech@example.com"
	devTenantEmail  = "tenant@example.com"
	devPassword     = "password123"

	devAdminID   = "dev-admin-001"
	devOpsID     = "dev-ops-001"
	devManagerID = "dev-manager-001"
	devTechID    = "dev-tech-001"
	devTenantID  = "dev-tenant-001"

	devPropertyID    = "dev-property-001"
	devUnitID        = "dev-unit-001"
	devLeaseID       = "dev-lease-001"
	devMaintenanceID = "dev-maint-001"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; copy .env.example to .env or export it")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()
	users := userrepo.NewPostgresRepository(conn)

	existing, err := users.GetByEmail(ctx, devAdminEmail)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Printf("seed already applied (%s exists), nothing to do", devAdminEmail)
		os.Exit(0)
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	passwordHash, err := hasher.Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	now := time.Now().UTC()
	seedUsers := []struct {
		id    string
		email string
		role  authz.Role
	}{
		{devAdminID, devAdminEmail, authz.RoleSuperAdmin},
		{devOpsID, devOpsEmail, authz.RolePlatformAdmin},
		{devManagerID, devManagerEmail, authz.RolePropertyManager},
		{devTechID, devTechEmail, authz.RoleMaintenanceTech},
		{devTenantID, devTenantEmail, authz.RoleTenant},
	}
	for _, su := range seedUsers {
		if err := users.Create(ctx, &userdomain.User{
			ID:           su.id,
			Email:        su.email,
			PasswordHash: passwordHash,
			Role:         su.role,
			Active:       true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}); err != nil {
			log.Fatalf("create %s: %v", su.email, err)
		}
	}

	// One demo property: the manager runs it, the tenant occupies its unit and
	// lease, and the tech is assigned its open maintenance request.
	resolver := authz.NewPostgresResolver(conn)
	grants := []struct {
		userID       string
		resourceType string
		resourceID   string
		relation     authz.Relation
	}{
		{devManagerID, authz.ResourceProperty, devPropertyID, authz.RelationManages},
		{devManagerID, authz.ResourceUnit, devUnitID, authz.RelationManages},
		{devManagerID, authz.ResourceLease, devLeaseID, authz.RelationManages},
		{devManagerID, authz.ResourceMaintenance, devMaintenanceID, authz.RelationManages},
		{devTenantID, authz.ResourceUnit, devUnitID, authz.RelationOccupies},
		{devTenantID, authz.ResourceLease, devLeaseID, authz.RelationOccupies},
		{devTenantID, authz.ResourceMaintenance, devMaintenanceID, authz.RelationIsSelf},
		{devTechID, authz.ResourceMaintenance, devMaintenanceID, authz.RelationAssigned},
		{devTechID, authz.ResourceUnit, devUnitID, authz.RelationAssigned},
	}
	for _, g := range grants {
		if err := resolver.Grant(ctx, g.userID, g.resourceType, g.resourceID, g.relation); err != nil {
			log.Fatalf("grant %s on %s/%s: %v", g.userID, g.resourceType, g.resourceID, err)
		}
	}

	log.Println("seed complete")
	fmt.Printf("super admin login: %s / %s\n", devAdminEmail, devPassword)
	fmt.Printf("same password for: %s, %s, %s, %s\n", devOpsEmail, devManagerEmail, devTechEmail, devTenantEmail)
}
