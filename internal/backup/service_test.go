package backup

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/escolar/internal/clock"
	"github.com/smallbiznis/escolar/internal/config"
	invoicedomain "github.com/smallbiznis/escolar/internal/invoice/domain"
	schooldomain "github.com/smallbiznis/escolar/internal/school/domain"
	"github.com/smallbiznis/escolar/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newService(t *testing.T, db *gorm.DB, root string, nodeID int64) *Service {
	t.Helper()
	node, err := snowflake.NewNode(nodeID)
	require.NoError(t, err)
	return NewService(Params{
		Log:   zap.NewNop(),
		DB:    db,
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2024, time.March, 1, 6, 0, 0, 0, time.UTC)),
		Config: config.Config{Blob: config.BlobConfig{
			Provider:  config.BlobProviderLocal,
			LocalRoot: root,
		}},
	})
}

type dataset struct {
	student    *schooldomain.Student
	guardian   *schooldomain.Guardian
	service    *schooldomain.Service
	enrollment *schooldomain.Enrollment
	invoice    *invoicedomain.Invoice
}

func seedDataset(t *testing.T, db *gorm.DB) dataset {
	t.Helper()
	seed := testutil.NewSeeder(t, db)
	seed.Company()
	student := seed.Student("Lucía")
	guardian := seed.Guardian()
	svc := seed.Service("Comedor", 120, schooldomain.ServiceStatusActive)
	classroom := seed.Classroom("3A")
	enr := seed.Enrollment(func(e *schooldomain.Enrollment) {
		e.StudentID = &student.ID
		e.ClassroomID = &classroom.ID
		e.GuardianIDs = testutil.IDs(guardian.ID)
		e.ServiceIDs = testutil.IDs(svc.ID)
	})
	seed.Employee(func(e *schooldomain.Employee) { e.IsActive = false })

	inv := &invoicedomain.Invoice{
		ID:            testutil.Node(t).Generate(),
		DocumentID:    uuid.NewString(),
		InvoiceNumber: "FAC-2024-000001",
		Category:      invoicedomain.CategoryEnrollment,
		Type:          invoicedomain.TypeCharge,
		Status:        invoicedomain.StatusUnpaid,
		Total:         decimal.RequireFromString("120.00"),
		EmissionDate:  time.Date(2024, time.March, 1, 5, 0, 0, 0, time.UTC),
		EnrollmentID:  &enr.ID,
		GuardianID:    &guardian.ID,
	}
	require.NoError(t, db.Create(inv).Error)
	return dataset{student: student, guardian: guardian, service: svc, enrollment: enr, invoice: inv}
}

func backupOf(t *testing.T, svc *Service) []byte {
	t.Helper()
	var buf bytes.Buffer
	_, err := svc.Backup(context.Background(), &buf)
	require.NoError(t, err)
	return buf.Bytes()
}

func restore(t *testing.T, svc *Service, data []byte, opts RestoreOptions) *RestoreReport {
	t.Helper()
	report, err := svc.Restore(context.Background(), bytes.NewReader(data), int64(len(data)), opts)
	require.NoError(t, err)
	return report
}

func findByDocument[T any](t *testing.T, db *gorm.DB, documentID string) *T {
	t.Helper()
	var out T
	require.NoError(t, db.Where("document_id = ?", documentID).First(&out).Error)
	return &out
}

func TestBackupManifest(t *testing.T) {
	db := testutil.OpenDB(t)
	seedDataset(t, db)
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "logos"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "logos", "escudo.png"), []byte("png"), 0o644))

	var buf bytes.Buffer
	manifest, err := newService(t, db, root, 2).Backup(context.Background(), &buf)
	require.NoError(t, err)

	assert.Equal(t, ManifestVersion, manifest.Version)
	assert.Equal(t, 1, manifest.Entities["companies"])
	assert.Equal(t, 1, manifest.Entities["enrollments"])
	assert.Equal(t, 1, manifest.Entities["invoices"])
	assert.Equal(t, 0, manifest.Entities["school_periods"])
	assert.Equal(t, []string{"logos/escudo.png"}, manifest.Assets)

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	assert.True(t, names["manifest.json"])
	assert.True(t, names["entities/guardians.json"])
	assert.True(t, names["entities/school_periods.json"])
	assert.True(t, names["assets/logos/escudo.png"])
}

func TestRestoreRemapsRelations(t *testing.T) {
	source := testutil.OpenNamedDB(t, "_source")
	ds := seedDataset(t, source)
	archive := backupOf(t, newService(t, source, "", 2))

	target := testutil.OpenNamedDB(t, "_target")
	report := restore(t, newService(t, target, "", 3), archive, RestoreOptions{})

	assert.Equal(t, 1, report.Created["enrollments"])
	assert.Equal(t, 1, report.Created["invoices"])
	assert.Empty(t, report.Updated["invoices"])
	assert.Empty(t, report.Unresolved)

	student := findByDocument[schooldomain.Student](t, target, ds.student.DocumentID)
	guardian := findByDocument[schooldomain.Guardian](t, target, ds.guardian.DocumentID)
	svc := findByDocument[schooldomain.Service](t, target, ds.service.DocumentID)
	enr := findByDocument[schooldomain.Enrollment](t, target, ds.enrollment.DocumentID)
	inv := findByDocument[invoicedomain.Invoice](t, target, ds.invoice.DocumentID)

	assert.NotEqual(t, ds.student.ID, student.ID)
	require.NotNil(t, enr.StudentID)
	assert.Equal(t, student.ID, *enr.StudentID)
	assert.Equal(t, []snowflake.ID{guardian.ID}, []snowflake.ID(enr.GuardianIDs))
	assert.Equal(t, []snowflake.ID{svc.ID}, []snowflake.ID(enr.ServiceIDs))
	require.NotNil(t, enr.ClassroomID)

	require.NotNil(t, inv.EnrollmentID)
	assert.Equal(t, enr.ID, *inv.EnrollmentID)
	require.NotNil(t, inv.GuardianID)
	assert.Equal(t, guardian.ID, *inv.GuardianID)
	assert.Equal(t, "FAC-2024-000001", inv.InvoiceNumber)
	assert.True(t, inv.Total.Equal(decimal.RequireFromString("120.00")))

	var employee schooldomain.Employee
	require.NoError(t, target.First(&employee).Error)
	assert.False(t, employee.IsActive)
}

func TestRestoreIntoSameStoreKeepsIDs(t *testing.T) {
	db := testutil.OpenDB(t)
	ds := seedDataset(t, db)
	svc := newService(t, db, "", 2)
	archive := backupOf(t, svc)

	require.NoError(t, db.Model(&schooldomain.Guardian{}).
		Where("id = ?", ds.guardian.ID).Update("iban", "ES0000000000000000000000").Error)

	report := restore(t, svc, archive, RestoreOptions{})
	assert.Empty(t, report.Created)
	assert.Equal(t, 1, report.Updated["guardians"])
	assert.Equal(t, 1, report.Updated["invoices"])

	guardian := findByDocument[schooldomain.Guardian](t, db, ds.guardian.DocumentID)
	assert.Equal(t, ds.guardian.ID, guardian.ID)
	assert.Equal(t, ds.guardian.IBAN, guardian.IBAN)

	enr := findByDocument[schooldomain.Enrollment](t, db, ds.enrollment.DocumentID)
	require.NotNil(t, enr.StudentID)
	assert.Equal(t, ds.student.ID, *enr.StudentID)
}

func TestRestorePruneIsOptIn(t *testing.T) {
	source := testutil.OpenNamedDB(t, "_source")
	seedDataset(t, source)
	archive := backupOf(t, newService(t, source, "", 2))

	target := testutil.OpenNamedDB(t, "_target")
	extra := testutil.NewSeeder(t, target).Guardian(func(g *schooldomain.Guardian) { g.Name = "Sobrante" })
	svc := newService(t, target, "", 3)

	report := restore(t, svc, archive, RestoreOptions{})
	assert.Empty(t, report.Pruned)
	var count int64
	require.NoError(t, target.Model(&schooldomain.Guardian{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)

	report = restore(t, svc, archive, RestoreOptions{Prune: true})
	assert.EqualValues(t, 1, report.Pruned["guardians"])
	require.NoError(t, target.Model(&schooldomain.Guardian{}).Where("document_id = ?", extra.DocumentID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRestoreReportsUnresolvedRelations(t *testing.T) {
	source := testutil.OpenNamedDB(t, "_source")
	seed := testutil.NewSeeder(t, source)
	guardian := seed.Guardian()
	missing := snowflake.ID(42)
	enr := seed.Enrollment(func(e *schooldomain.Enrollment) {
		e.GuardianIDs = testutil.IDs(missing, guardian.ID)
	})
	archive := backupOf(t, newService(t, source, "", 2))

	target := testutil.OpenNamedDB(t, "_target")
	report := restore(t, newService(t, target, "", 3), archive, RestoreOptions{})

	require.Len(t, report.Unresolved, 1)
	assert.Contains(t, report.Unresolved[0], enr.DocumentID)
	assert.Contains(t, report.Unresolved[0], missing.String())

	restored := findByDocument[schooldomain.Enrollment](t, target, enr.DocumentID)
	current := findByDocument[schooldomain.Guardian](t, target, guardian.DocumentID)
	assert.Equal(t, []snowflake.ID{current.ID}, []snowflake.ID(restored.GuardianIDs))
}

func TestRestoreAssets(t *testing.T) {
	db := testutil.OpenDB(t)
	sourceRoot := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(sourceRoot, "exports"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sourceRoot, "exports", "remesa.zip"), []byte("zip"), 0o644))
	archive := backupOf(t, newService(t, db, sourceRoot, 2))

	targetRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(targetRoot, "old.txt"), []byte("old"), 0o644))
	svc := newService(t, db, targetRoot, 3)

	report := restore(t, svc, archive, RestoreOptions{})
	assert.Equal(t, 1, report.AssetsRestored)
	assert.Equal(t, []string{"old.txt"}, report.OrphanAssets)
	data, err := os.ReadFile(filepath.Join(targetRoot, "exports", "remesa.zip"))
	require.NoError(t, err)
	assert.Equal(t, "zip", string(data))

	report = restore(t, svc, archive, RestoreOptions{Prune: true})
	assert.Equal(t, 1, report.AssetsPruned)
	assert.NoFileExists(t, filepath.Join(targetRoot, "old.txt"))
}

func TestRestoreRejectsBadArchives(t *testing.T) {
	svc := newService(t, testutil.OpenDB(t), "", 2)

	_, err := svc.Restore(context.Background(), bytes.NewReader([]byte("nope")), 4, RestoreOptions{})
	assert.ErrorIs(t, err, ErrInvalidArchive)

	build := func(files map[string]string) []byte {
		var buf bytes.Buffer
		zw := zip.NewWriter(&buf)
		for name, body := range files {
			w, err := zw.Create(name)
			require.NoError(t, err)
			_, err = w.Write([]byte(body))
			require.NoError(t, err)
		}
		require.NoError(t, zw.Close())
		return buf.Bytes()
	}

	noManifest := build(map[string]string{"entities/companies.json": "[]"})
	_, err = svc.Restore(context.Background(), bytes.NewReader(noManifest), int64(len(noManifest)), RestoreOptions{})
	assert.ErrorIs(t, err, ErrInvalidArchive)

	future := build(map[string]string{"manifest.json": `{"version": 9}`})
	_, err = svc.Restore(context.Background(), bytes.NewReader(future), int64(len(future)), RestoreOptions{})
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
	assert.True(t, IsArchiveError(err))

	missing := build(map[string]string{"manifest.json": `{"version": 1, "entities": {"students": 2}}`})
	_, err = svc.Restore(context.Background(), bytes.NewReader(missing), int64(len(missing)), RestoreOptions{})
	assert.ErrorIs(t, err, ErrInvalidArchive)

	escape := build(map[string]string{
		"manifest.json":   `{"version": 1}`,
		"assets/../x.txt": "x",
	})
	rooted := newService(t, testutil.OpenNamedDB(t, "_assets"), t.TempDir(), 2)
	_, err = rooted.Restore(context.Background(), bytes.NewReader(escape), int64(len(escape)), RestoreOptions{})
	assert.ErrorIs(t, err, ErrInvalidArchive)
}
