package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marcusgoll/cfipros-web-sub000/internal/models"
	"github.com/marcusgoll/cfipros-web-sub000/internal/repositories"
)

// In-memory repositories. Every method ignores db.

func noTx(db *gorm.DB, fn func(tx *gorm.DB) error) error {
	return fn(db)
}

// =========================================================================
// Users & schools
// =========================================================================

type fakeUserRepo struct {
	mu      sync.Mutex
	byID    map[string]*models.User
	schools *fakeSchoolRepo
}

func newFakeUserRepo(schools *fakeSchoolRepo) *fakeUserRepo {
	return &fakeUserRepo{byID: map[string]*models.User{}, schools: schools}
}

func (r *fakeUserRepo) Create(_ *gorm.DB, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	email := strings.ToLower(user.Email)
	for _, u := range r.byID {
		if u.Email == email {
			return repositories.ErrUserAlreadyExists
		}
	}
	user.Email = email
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	cp := *user
	r.byID[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) FindByID(_ *gorm.DB, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	cp := *u
	if cp.SchoolID != nil && r.schools != nil {
		cp.School, _ = r.schools.FindByID(nil, *cp.SchoolID)
	}
	return &cp, nil
}

func (r *fakeUserRepo) FindByEmail(_ *gorm.DB, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Email == strings.ToLower(email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (r *fakeUserRepo) UpdateProfile(_ *gorm.DB, userID string, fields repositories.UserProfileUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[userID]
	if !ok {
		return repositories.ErrUserNotFound
	}
	if fields.FullName != nil {
		u.FullName = *fields.FullName
	}
	if fields.Phone != nil {
		u.Phone = *fields.Phone
	}
	if fields.CertificateNumber != nil {
		u.CertificateNumber = *fields.CertificateNumber
	}
	return nil
}

func (r *fakeUserRepo) SetSchool(_ *gorm.DB, userID, schoolID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[userID]
	if !ok {
		return repositories.ErrUserNotFound
	}
	u.SchoolID = &schoolID
	return nil
}

type fakeSchoolRepo struct {
	mu   sync.Mutex
	byID map[string]*models.School
	err  error
}

func newFakeSchoolRepo() *fakeSchoolRepo {
	return &fakeSchoolRepo{byID: map[string]*models.School{}}
}

func (r *fakeSchoolRepo) Create(_ *gorm.DB, school *models.School) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if school.ID == "" {
		school.ID = uuid.NewString()
	}
	cp := *school
	r.byID[school.ID] = &cp
	return nil
}

func (r *fakeSchoolRepo) FindByID(_ *gorm.DB, id string) (*models.School, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return nil, repositories.ErrSchoolNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *fakeSchoolRepo) FindByOwner(_ *gorm.DB, ownerID string) (*models.School, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.byID {
		if s.OwnerID == ownerID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, repositories.ErrSchoolNotFound
}

// =========================================================================
// Subscriptions & billing events
// =========================================================================

type fakeSubRepo struct {
	mu      sync.Mutex
	rows    map[string]*models.Subscription
	deleted map[string]bool
	creates int
	updates int
	// failUpdates makes UpdateFromSnapshot fail, simulating an unavailable store.
	failUpdates error
}

func newFakeSubRepo() *fakeSubRepo {
	return &fakeSubRepo{rows: map[string]*models.Subscription{}, deleted: map[string]bool{}}
}

func (r *fakeSubRepo) Create(_ *gorm.DB, sub *models.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := sub.Owner(); err != nil {
		return err
	}
	if _, ok := r.rows[sub.StripeSubscriptionID]; ok {
		return repositories.ErrSubscriptionExists
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	cp := *sub
	r.rows[sub.StripeSubscriptionID] = &cp
	r.creates++
	return nil
}

func (r *fakeSubRepo) FindByStripeID(_ *gorm.DB, id string) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rows[id]
	if !ok || r.deleted[id] {
		return nil, repositories.ErrSubscriptionNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *fakeSubRepo) FindByStripeIDUnscoped(_ *gorm.DB, id string) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rows[id]
	if !ok {
		return nil, repositories.ErrSubscriptionNotFound
	}
	cp := *s
	cp.DeletedAt.Valid = r.deleted[id]
	return &cp, nil
}

func (r *fakeSubRepo) FindActiveByOwner(_ *gorm.DB, owner models.Owner) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.rows {
		o, err := s.Owner()
		if err != nil || r.deleted[id] || !s.Status.IsLive() {
			continue
		}
		if o == owner {
			cp := *s
			return &cp, nil
		}
	}
	return nil, repositories.ErrSubscriptionNotFound
}

func (r *fakeSubRepo) UpdateFromSnapshot(_ *gorm.DB, id string, upd repositories.SubscriptionUpdate) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpdates != nil {
		return nil, r.failUpdates
	}
	s, ok := r.rows[id]
	if !ok || r.deleted[id] {
		return nil, repositories.ErrSubscriptionNotFound
	}
	if upd.StripeCustomerID != "" {
		s.StripeCustomerID = upd.StripeCustomerID
	}
	s.Status = upd.Status
	s.CurrentPeriodStart = upd.CurrentPeriodStart
	s.CurrentPeriodEnd = upd.CurrentPeriodEnd
	s.CancelAtPeriodEnd = upd.CancelAtPeriodEnd
	r.updates++
	cp := *s
	return &cp, nil
}

func (r *fakeSubRepo) SoftDelete(_ *gorm.DB, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok || r.deleted[id] {
		return repositories.ErrSubscriptionNotFound
	}
	r.deleted[id] = true
	return nil
}

// raw returns the row even when soft-deleted.
func (r *fakeSubRepo) raw(id string) (*models.Subscription, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rows[id]
	if !ok {
		return nil, false
	}
	cp := *s
	return &cp, r.deleted[id]
}

type fakeEventRepo struct {
	mu     sync.Mutex
	rows   []*models.BillingWebhookEvent
	record error
}

func (r *fakeEventRepo) Record(_ *gorm.DB, ev *models.BillingWebhookEvent) (*models.BillingWebhookEvent, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.record != nil {
		return nil, false, r.record
	}
	for _, row := range r.rows {
		if row.Provider == ev.Provider && row.ProviderEventID == ev.ProviderEventID {
			cp := *row
			return &cp, false, nil
		}
	}
	ev.ID = uuid.NewString()
	cp := *ev
	r.rows = append(r.rows, &cp)
	return ev, true, nil
}

func (r *fakeEventRepo) MarkProcessed(_ *gorm.DB, id string, at time.Time) error {
	return r.finish(id, at, nil)
}

func (r *fakeEventRepo) MarkFailed(_ *gorm.DB, id string, msg string, at time.Time) error {
	return r.finish(id, at, &msg)
}

func (r *fakeEventRepo) finish(id string, at time.Time, msg *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.ID != id {
			continue
		}
		row.Attempts++
		t := at
		row.LastAttemptAt = &t
		if msg != nil {
			row.ProcessingError = *msg
			row.ProcessedAt = nil
		} else {
			row.ProcessingError = ""
			row.ProcessedAt = &t
		}
		return nil
	}
	return repositories.ErrBillingEventNotFound
}

func (r *fakeEventRepo) FindReplayable(_ *gorm.DB, maxAttempts, limit int) ([]models.BillingWebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.BillingWebhookEvent
	for _, row := range r.rows {
		if row.ProcessedAt == nil && row.Attempts > 0 && row.Attempts < maxAttempts {
			out = append(out, *row)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeEventRepo) only() *models.BillingWebhookEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.rows) != 1 {
		return nil
	}
	cp := *r.rows[0]
	return &cp
}

// =========================================================================
// Uploads & OCR results
// =========================================================================

type fakeUploadRepo struct {
	mu        sync.Mutex
	rows      map[string]*models.Upload
	createErr error
}

func newFakeUploadRepo() *fakeUploadRepo {
	return &fakeUploadRepo{rows: map[string]*models.Upload{}}
}

func (r *fakeUploadRepo) Create(_ *gorm.DB, up *models.Upload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if up.ID == "" {
		up.ID = uuid.NewString()
	}
	cp := *up
	r.rows[up.ID] = &cp
	return nil
}

func (r *fakeUploadRepo) FindByID(_ *gorm.DB, id string) (*models.Upload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.rows[id]
	if !ok {
		return nil, repositories.ErrUploadNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUploadRepo) FindByIDForUser(db *gorm.DB, id, userID string) (*models.Upload, error) {
	u, err := r.FindByID(db, id)
	if err != nil {
		return nil, err
	}
	if u.UserID != userID {
		return nil, repositories.ErrUploadNotFound
	}
	return u, nil
}

func (r *fakeUploadRepo) ListByUser(_ *gorm.DB, userID string, page, pageSize int) ([]models.Upload, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []models.Upload
	for _, u := range r.rows {
		if u.UserID == userID {
			all = append(all, *u)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	start := (page - 1) * pageSize
	if start > len(all) {
		start = len(all)
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], int64(len(all)), nil
}

func (r *fakeUploadRepo) UpdateStatus(_ *gorm.DB, id string, status models.UploadStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.rows[id]
	if !ok {
		return repositories.ErrUploadNotFound
	}
	u.Status = status
	return nil
}

func (r *fakeUploadRepo) SetArchivePath(_ *gorm.DB, id, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.rows[id]
	if !ok {
		return repositories.ErrUploadNotFound
	}
	u.ArchivePath = path
	return nil
}

type fakeResultRepo struct {
	mu   sync.Mutex
	rows map[string]*models.OcrResult
}

func newFakeResultRepo() *fakeResultRepo {
	return &fakeResultRepo{rows: map[string]*models.OcrResult{}}
}

func (r *fakeResultRepo) Save(_ *gorm.DB, res *models.OcrResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *res
	r.rows[res.FileID] = &cp
	return nil
}

func (r *fakeResultRepo) FindByFileID(_ *gorm.DB, fileID string) (*models.OcrResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.rows[fileID]
	if !ok {
		return nil, repositories.ErrOcrResultNotFound
	}
	cp := *res
	return &cp, nil
}

func (r *fakeResultRepo) MarkArchived(_ *gorm.DB, fileID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.rows[fileID]
	if !ok {
		return repositories.ErrOcrResultNotFound
	}
	now := time.Now()
	res.ArchivedAt = &now
	return nil
}

// =========================================================================
// Dispatcher & tokens
// =========================================================================

type fakeDispatcher struct {
	mu   sync.Mutex
	jobs []OCRJob
	err  error
}

func (d *fakeDispatcher) Dispatch(_ context.Context, job OCRJob) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, job)
	return nil
}

type fakeTokens struct{}

func (fakeTokens) GenerateToken(userID, role string) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, errors.New("empty user")
	}
	return "token-" + userID + "-" + role, time.Unix(1_900_000_000, 0), nil
}
