package testutil

import (
	"context"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/dalemusser/taskhub/internal/app/store/otps"
	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/app/system/normalize"
	"github.com/dalemusser/taskhub/internal/app/system/txn"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemStore bundles in-memory repositories that behave like the Mongo stores:
// same sentinels, same version guards, same list ordering. Service tests run
// against it so they need no database.
type MemStore struct {
	Users     *MemUsers
	Projects  *MemProjects
	Tasks     *MemTasks
	OTPs      *MemOTPs
	Blacklist *MemBlacklist
	Tx        MemTx
}

// NewMemStore returns empty repositories.
func NewMemStore() *MemStore {
	return &MemStore{
		Users:     &MemUsers{byID: map[primitive.ObjectID]models.User{}},
		Projects:  &MemProjects{byID: map[primitive.ObjectID]models.Project{}},
		Tasks:     &MemTasks{byID: map[primitive.ObjectID]models.Task{}},
		OTPs:      &MemOTPs{byKey: map[otpKey]models.OTP{}, now: time.Now},
		Blacklist: &MemBlacklist{byID: map[string]time.Time{}},
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| Users                                                                      |
*─────────────────────────────────────────────────────────────────────────────*/

// MemUsers mirrors userstore.Store.
type MemUsers struct {
	mu   sync.Mutex
	byID map[primitive.ObjectID]models.User
}

func (m *MemUsers) GetByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, apperr.ErrUserNotFound
	}
	return &u, nil
}

func (m *MemUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = normalize.Email(email)
	for _, u := range m.byID {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, apperr.ErrUserNotFound
}

func (m *MemUsers) ExistsNameOrEmail(_ context.Context, name, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	nameCI := text.Fold(normalize.Name(name))
	email = normalize.Email(email)
	for _, u := range m.byID {
		if u.NameCI == nameCI || u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemUsers) EmailTaken(_ context.Context, email string, exclude primitive.ObjectID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = normalize.Email(email)
	for _, u := range m.byID {
		if u.Email == email && u.ID != exclude {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemUsers) Create(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.Name = normalize.Name(u.Name)
	u.NameCI = text.Fold(u.Name)
	u.Email = normalize.Email(u.Email)
	for _, x := range m.byID {
		if x.NameCI == u.NameCI || x.Email == u.Email {
			return apperr.ErrUserExists
		}
	}
	u.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	m.byID[u.ID] = *u
	return nil
}

func (m *MemUsers) update(id primitive.ObjectID, fn func(u *models.User) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok || u.IsDeleted {
		return apperr.ErrUserNotFound
	}
	if err := fn(&u); err != nil {
		return err
	}
	u.UpdatedAt = time.Now().UTC()
	m.byID[id] = u
	return nil
}

func (m *MemUsers) SetVerified(_ context.Context, id primitive.ObjectID) error {
	return m.update(id, func(u *models.User) error {
		u.IsVerified = true
		return nil
	})
}

func (m *MemUsers) SetResetWindow(_ context.Context, id primitive.ObjectID, until *time.Time) error {
	return m.update(id, func(u *models.User) error {
		if until == nil {
			u.ForgotOTPVerifiedUntil = nil
			return nil
		}
		t := until.UTC()
		u.ForgotOTPVerifiedUntil = &t
		return nil
	})
}

func (m *MemUsers) UpdatePassword(_ context.Context, id primitive.ObjectID, hash string) error {
	return m.update(id, func(u *models.User) error {
		u.PasswordHash = hash
		u.ForgotOTPVerifiedUntil = nil
		u.TokenVersion++
		return nil
	})
}

func (m *MemUsers) UpdateEmail(_ context.Context, id primitive.ObjectID, email string) error {
	email = normalize.Email(email)
	m.mu.Lock()
	for _, x := range m.byID {
		if x.Email == email && x.ID != id {
			m.mu.Unlock()
			return apperr.ErrEmailTaken
		}
	}
	m.mu.Unlock()
	return m.update(id, func(u *models.User) error {
		u.Email = email
		u.TokenVersion++
		return nil
	})
}

func (m *MemUsers) Search(_ context.Context, pattern string, limit int64) ([]models.UserSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var re *regexp.Regexp
	if pattern != "" {
		var err error
		if re, err = regexp.Compile("(?i)" + pattern); err != nil {
			return nil, err
		}
	}
	var hits []models.User
	for _, u := range m.byID {
		if !u.Active() {
			continue
		}
		if re != nil && !re.MatchString(u.NameCI) && !re.MatchString(u.Email) {
			continue
		}
		hits = append(hits, u)
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].NameCI != hits[j].NameCI {
			return hits[i].NameCI < hits[j].NameCI
		}
		return hits[i].ID.Hex() < hits[j].ID.Hex()
	})
	out := []models.UserSummary{}
	for _, u := range hits {
		if limit > 0 && int64(len(out)) >= limit {
			break
		}
		out = append(out, u.Summary())
	}
	return out, nil
}

func (m *MemUsers) CountVerifiedActive(_ context.Context, ids []primitive.ObjectID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	seen := map[primitive.ObjectID]bool{}
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if u, ok := m.byID[id]; ok && u.Active() {
			n++
		}
	}
	return n, nil
}

func (m *MemUsers) Summaries(_ context.Context, ids []primitive.ObjectID) ([]models.UserSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.UserSummary{}
	for _, id := range ids {
		if u, ok := m.byID[id]; ok {
			out = append(out, u.Summary())
		}
	}
	return out, nil
}

// Put stores u as-is, assigning an id when it has none.
func (m *MemUsers) Put(u models.User) models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	if u.NameCI == "" {
		u.NameCI = text.Fold(u.Name)
	}
	u.Email = normalize.Email(u.Email)
	m.byID[u.ID] = u
	return u
}

/*─────────────────────────────────────────────────────────────────────────────*
| Projects                                                                   |
*─────────────────────────────────────────────────────────────────────────────*/

// MemProjects mirrors projectstore.Store.
type MemProjects struct {
	mu   sync.Mutex
	byID map[primitive.ObjectID]models.Project

	// FailSave, when set, is returned by the next Save or SoftDelete.
	FailSave error
}

func cloneProject(p models.Project) models.Project {
	p.Admins = append([]primitive.ObjectID{}, p.Admins...)
	p.Members = append([]primitive.ObjectID{}, p.Members...)
	return p
}

func (m *MemProjects) Get(_ context.Context, id primitive.ObjectID) (*models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok || p.IsDeleted {
		return nil, apperr.ErrProjectNotFound
	}
	c := cloneProject(p)
	return &c, nil
}

// Raw returns the stored project including soft-deleted ones.
func (m *MemProjects) Raw(id primitive.ObjectID) (models.Project, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	return cloneProject(p), ok
}

func (m *MemProjects) existsName(owner primitive.ObjectID, nameLower string, exclude primitive.ObjectID) bool {
	for _, p := range m.byID {
		if !p.IsDeleted && p.Owner == owner && p.NameLower == nameLower && p.ID != exclude {
			return true
		}
	}
	return false
}

func (m *MemProjects) ExistsName(_ context.Context, owner primitive.ObjectID, nameLower string, exclude primitive.ObjectID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.existsName(owner, nameLower, exclude), nil
}

func (m *MemProjects) Create(_ context.Context, p *models.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.existsName(p.Owner, p.NameLower, primitive.NilObjectID) {
		return apperr.ErrProjectNameExists
	}
	now := time.Now().UTC()
	p.ID = primitive.NewObjectID()
	p.Version = 1
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.Admins == nil {
		p.Admins = []primitive.ObjectID{}
	}
	if p.Members == nil {
		p.Members = []primitive.ObjectID{}
	}
	m.byID[p.ID] = cloneProject(*p)
	return nil
}

func (m *MemProjects) takeFailure() error {
	err := m.FailSave
	m.FailSave = nil
	return err
}

func (m *MemProjects) Save(_ context.Context, p *models.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	cur, ok := m.byID[p.ID]
	if !ok || cur.IsDeleted || cur.Version != p.Version {
		return apperr.ErrConcurrentUpdate
	}
	if m.existsName(p.Owner, p.NameLower, p.ID) {
		return apperr.ErrProjectNameExists
	}
	p.Version++
	p.UpdatedAt = time.Now().UTC()
	m.byID[p.ID] = cloneProject(*p)
	return nil
}

func (m *MemProjects) SoftDelete(_ context.Context, p *models.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	cur, ok := m.byID[p.ID]
	if !ok || cur.IsDeleted || cur.Version != p.Version {
		return apperr.ErrConcurrentUpdate
	}
	cur.IsDeleted = true
	cur.Version++
	cur.UpdatedAt = time.Now().UTC()
	m.byID[p.ID] = cur
	p.IsDeleted = true
	p.Version = cur.Version
	p.UpdatedAt = cur.UpdatedAt
	return nil
}

func (m *MemProjects) ListForUser(_ context.Context, f models.ProjectFilter) ([]models.Project, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var re *regexp.Regexp
	if f.Search != "" {
		var err error
		if re, err = regexp.Compile(f.Search); err != nil {
			return nil, 0, err
		}
	}
	var hits []models.Project
	for _, p := range m.byID {
		if p.IsDeleted {
			continue
		}
		if p.Owner != f.UserID && !p.IsAdmin(f.UserID) && !p.IsMember(f.UserID) {
			continue
		}
		if re != nil && !re.MatchString(p.NameLower) {
			continue
		}
		hits = append(hits, cloneProject(p))
	}
	sort.Slice(hits, func(i, j int) bool {
		if !hits[i].CreatedAt.Equal(hits[j].CreatedAt) {
			return hits[i].CreatedAt.After(hits[j].CreatedAt)
		}
		return hits[i].ID.Hex() > hits[j].ID.Hex()
	})
	return window(hits, f.Skip, f.Limit), int64(len(hits)), nil
}

func (m *MemProjects) DeletedAmong(_ context.Context, ids []primitive.ObjectID) ([]primitive.ObjectID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []primitive.ObjectID
	for _, id := range ids {
		if p, ok := m.byID[id]; ok && p.IsDeleted {
			out = append(out, id)
		}
	}
	return out, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Tasks                                                                      |
*─────────────────────────────────────────────────────────────────────────────*/

// MemTasks mirrors taskstore.Store.
type MemTasks struct {
	mu   sync.Mutex
	byID map[primitive.ObjectID]models.Task

	// FailCascade, when set, is returned by the next SoftDeleteByProjects.
	FailCascade error
}

func cloneTask(t models.Task) models.Task {
	t.Assignees = append([]models.Assignee{}, t.Assignees...)
	return t
}

func (m *MemTasks) Get(_ context.Context, id primitive.ObjectID) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok || t.IsDeleted {
		return nil, apperr.ErrTaskNotFound
	}
	c := cloneTask(t)
	return &c, nil
}

// Raw returns the stored task including soft-deleted ones.
func (m *MemTasks) Raw(id primitive.ObjectID) (models.Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	return cloneTask(t), ok
}

func (m *MemTasks) Create(_ context.Context, t *models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	t.ID = primitive.NewObjectID()
	t.Version = 1
	t.CreatedAt = now
	t.UpdatedAt = now
	t.PriorityRank = t.Priority.Rank()
	m.byID[t.ID] = cloneTask(*t)
	return nil
}

func (m *MemTasks) Save(_ context.Context, t *models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.byID[t.ID]
	if !ok || cur.IsDeleted || cur.Version != t.Version {
		return apperr.ErrConcurrentUpdate
	}
	t.Version++
	t.UpdatedAt = time.Now().UTC()
	t.PriorityRank = t.Priority.Rank()
	m.byID[t.ID] = cloneTask(*t)
	return nil
}

func (m *MemTasks) SoftDelete(_ context.Context, t *models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.byID[t.ID]
	if !ok || cur.IsDeleted || cur.Version != t.Version {
		return apperr.ErrConcurrentUpdate
	}
	cur.IsDeleted = true
	cur.Version++
	cur.UpdatedAt = time.Now().UTC()
	m.byID[t.ID] = cur
	t.IsDeleted = true
	t.Version = cur.Version
	return nil
}

func (m *MemTasks) SoftDeleteByProjects(_ context.Context, ids []primitive.ObjectID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailCascade; err != nil {
		m.FailCascade = nil
		return 0, err
	}
	var n int64
	for id, t := range m.byID {
		if t.IsDeleted || !models.ContainsID(ids, t.ProjectID) {
			continue
		}
		t.IsDeleted = true
		t.Version++
		m.byID[id] = t
		n++
	}
	return n, nil
}

func (m *MemTasks) LiveProjectIDs(_ context.Context) ([]primitive.ObjectID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []primitive.ObjectID
	for _, t := range m.byID {
		if !t.IsDeleted && !models.ContainsID(out, t.ProjectID) {
			out = append(out, t.ProjectID)
		}
	}
	return out, nil
}

func matchTask(t models.Task, f models.TaskFilter, re *regexp.Regexp) bool {
	switch {
	case t.IsDeleted:
		return false
	case !f.ProjectID.IsZero() && t.ProjectID != f.ProjectID:
		return false
	case !f.CreatedBy.IsZero() && t.CreatedBy != f.CreatedBy:
		return false
	case f.Status != "" && t.Status != f.Status:
		return false
	case f.Priority != "" && t.Priority != f.Priority:
		return false
	case f.DueFrom != nil && t.DueDate.Before(*f.DueFrom):
		return false
	case f.DueTo != nil && t.DueDate.After(*f.DueTo):
		return false
	case re != nil && !re.MatchString(t.TitleCI):
		return false
	}
	for _, a := range f.Assignees {
		if t.Entry(a) < 0 {
			return false
		}
	}
	return true
}

func (m *MemTasks) List(_ context.Context, f models.TaskFilter) ([]models.Task, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var re *regexp.Regexp
	if f.Search != "" {
		var err error
		if re, err = regexp.Compile(f.Search); err != nil {
			return nil, 0, err
		}
	}
	var hits []models.Task
	for _, t := range m.byID {
		if matchTask(t, f, re) {
			hits = append(hits, cloneTask(t))
		}
	}
	less := func(a, b models.Task) int {
		switch f.SortBy {
		case models.SortDueDate:
			return a.DueDate.Compare(b.DueDate)
		case models.SortPriority:
			return a.PriorityRank - b.PriorityRank
		default:
			return a.CreatedAt.Compare(b.CreatedAt)
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		c := less(hits[i], hits[j])
		if c == 0 {
			c = compareHex(hits[i].ID, hits[j].ID)
		}
		if f.Desc {
			return c > 0
		}
		return c < 0
	})
	return window(hits, f.Skip, f.Limit), int64(len(hits)), nil
}

func compareHex(a, b primitive.ObjectID) int {
	switch ha, hb := a.Hex(), b.Hex(); {
	case ha < hb:
		return -1
	case ha > hb:
		return 1
	}
	return 0
}

func window[T any](items []T, skip, limit int64) []T {
	out := []T{}
	if skip >= int64(len(items)) {
		return out
	}
	items = items[skip:]
	if limit > 0 && limit < int64(len(items)) {
		items = items[:limit]
	}
	return append(out, items...)
}

/*─────────────────────────────────────────────────────────────────────────────*
| OTPs and blacklist                                                         |
*─────────────────────────────────────────────────────────────────────────────*/

type otpKey struct {
	user    primitive.ObjectID
	purpose models.OTPPurpose
}

// MemOTPs mirrors otps.Store, including the attempt cap.
type MemOTPs struct {
	mu    sync.Mutex
	byKey map[otpKey]models.OTP
	now   func() time.Time

	// Expiry defaults to otps.DefaultExpiry.
	Expiry time.Duration
}

// SetClock replaces the time source.
func (m *MemOTPs) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemOTPs) Issue(_ context.Context, userID primitive.ObjectID, purpose models.OTPPurpose, targetEmail string) (string, error) {
	code, hash, err := otps.NewCode()
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	expiry := m.Expiry
	if expiry <= 0 {
		expiry = otps.DefaultExpiry
	}
	now := m.now().UTC()
	m.byKey[otpKey{userID, purpose}] = models.OTP{
		ID:          primitive.NewObjectID(),
		UserID:      userID,
		Purpose:     purpose,
		TargetEmail: targetEmail,
		CodeHash:    hash,
		ExpiresAt:   now.Add(expiry),
		CreatedAt:   now,
	}
	return code, nil
}

func (m *MemOTPs) Verify(_ context.Context, userID primitive.ObjectID, purpose models.OTPPurpose, code string) (*models.OTP, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := otpKey{userID, purpose}
	otp, ok := m.byKey[key]
	if !ok || !otp.ExpiresAt.After(m.now().UTC()) {
		return nil, apperr.ErrOTPExpired
	}
	if otp.Attempts >= otps.MaxVerifyAttempts {
		return nil, apperr.ErrTooManyAttempts
	}
	otp.Attempts++
	m.byKey[key] = otp
	if !otps.CheckCode(otp.CodeHash, code) {
		return nil, apperr.ErrInvalidOTP
	}
	delete(m.byKey, key)
	return &otp, nil
}

// Pending reports whether a code is outstanding for (userID, purpose).
func (m *MemOTPs) Pending(userID primitive.ObjectID, purpose models.OTPPurpose) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byKey[otpKey{userID, purpose}]
	return ok
}

// MemBlacklist mirrors tokenblacklist.Store.
type MemBlacklist struct {
	mu   sync.Mutex
	byID map[string]time.Time
}

func (m *MemBlacklist) Add(_ context.Context, tokenID string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[tokenID]; !ok {
		m.byID[tokenID] = expiresAt
	}
	return nil
}

func (m *MemBlacklist) Contains(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.byID[tokenID]
	return ok && exp.After(time.Now()), nil
}

// MemTx runs fn directly, like txn.Runner on a standalone server. With
// Transactional set, fn sees a context marked as inside a transaction; no
// rollback is simulated.
type MemTx struct {
	Transactional bool
}

func (m MemTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.Transactional {
		ctx = txn.WithActive(ctx)
	}
	return fn(ctx)
}
