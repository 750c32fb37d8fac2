package service

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/smartque-backend/internal/models"
	"github.com/ignatzorin/smartque-backend/internal/repository"
	"github.com/ignatzorin/smartque-backend/internal/repository/common"
)

// fakeClock — управляемое время для тестов.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeOTPRepo хранит записи в памяти.
type fakeOTPRepo struct {
	mu      sync.Mutex
	records map[uuid.UUID]*models.OTPRecord
	seq     int
}

func newFakeOTPRepo() *fakeOTPRepo {
	return &fakeOTPRepo{records: make(map[uuid.UUID]*models.OTPRecord)}
}

func (r *fakeOTPRepo) Create(ctx context.Context, rec *models.OTPRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	rec.ID = uuid.New()
	rec.CreatedAt = time.Unix(int64(r.seq), 0)
	cp := *rec
	r.records[rec.ID] = &cp
	return nil
}

func (r *fakeOTPRepo) byEmail(email string) []*models.OTPRecord {
	var out []*models.OTPRecord
	for _, rec := range r.records {
		if rec.Email == email {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *fakeOTPRepo) Latest(ctx context.Context, email string) (*models.OTPRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	recs := r.byEmail(email)
	if len(recs) == 0 {
		return nil, repository.ErrOTPNotFound
	}
	cp := *recs[0]
	return &cp, nil
}

func (r *fakeOTPRepo) IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return 0, repository.ErrOTPNotFound
	}
	rec.Attempts++
	return rec.Attempts, nil
}

func (r *fakeOTPRepo) MarkVerified(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return repository.ErrOTPNotFound
	}
	rec.Verified = true
	return nil
}

func (r *fakeOTPRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, id)
	return nil
}

func (r *fakeOTPRepo) DeleteByEmail(ctx context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, rec := range r.records {
		if rec.Email == email {
			delete(r.records, id)
		}
	}
	return nil
}

func (r *fakeOTPRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, rec := range r.records {
		if rec.ExpiresAt.Before(now) {
			delete(r.records, id)
			n++
		}
	}
	return n, nil
}

func (r *fakeOTPRepo) ConsumeVerified(ctx context.Context, email string, now time.Time, fn func(ctx context.Context, q common.Querier) error) error {
	r.mu.Lock()
	found := false
	for _, rec := range r.byEmail(email) {
		if rec.Verified && rec.ExpiresAt.After(now) {
			found = true
			break
		}
	}
	r.mu.Unlock()
	if !found {
		return repository.ErrOTPNotVerified
	}

	if err := fn(ctx, nil); err != nil {
		return err
	}
	return r.DeleteByEmail(ctx, email)
}

func (r *fakeOTPRepo) count(email string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byEmail(email))
}

// fakeUserRepo хранит пользователей в памяти.
type fakeUserRepo struct {
	mu      sync.Mutex
	byEmail map[string]*models.User
	byID    map[uuid.UUID]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byEmail: make(map[string]*models.User),
		byID:    make(map[uuid.UUID]*models.User),
	}
}

func (r *fakeUserRepo) Create(ctx context.Context, q common.Querier, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[user.Email]; ok {
		return repository.ErrUserExists
	}
	user.ID = uuid.New()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.byEmail[user.Email] = user
	r.byID[user.ID] = user
	return nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byEmail[email]; ok {
		return u, nil
	}
	return nil, repository.ErrUserNotFound
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[id]; ok {
		return u, nil
	}
	return nil, repository.ErrUserNotFound
}

func (r *fakeUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byEmail[email]
	return ok, nil
}

// fakeResetRepo хранит токены сброса в памяти.
type fakeResetRepo struct {
	mu     sync.Mutex
	resets map[uuid.UUID]*models.PasswordReset
	users  *fakeUserRepo
}

func newFakeResetRepo(users *fakeUserRepo) *fakeResetRepo {
	return &fakeResetRepo{resets: make(map[uuid.UUID]*models.PasswordReset), users: users}
}

func (r *fakeResetRepo) Create(ctx context.Context, reset *models.PasswordReset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reset.ID = uuid.New()
	reset.CreatedAt = time.Now()
	cp := *reset
	r.resets[reset.ID] = &cp
	return nil
}

func (r *fakeResetRepo) GetActive(ctx context.Context, tokenHash string, now time.Time) (*models.PasswordReset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reset := range r.resets {
		if reset.TokenHash == tokenHash && reset.UsedAt == nil && reset.ExpiresAt.After(now) {
			cp := *reset
			return &cp, nil
		}
	}
	return nil, repository.ErrResetTokenNotFound
}

func (r *fakeResetRepo) Consume(ctx context.Context, resetID, userID uuid.UUID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reset, ok := r.resets[resetID]
	if !ok || reset.UsedAt != nil {
		return repository.ErrResetTokenNotFound
	}
	user, err := r.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	now := time.Now()
	reset.UsedAt = &now
	user.PasswordHash = passwordHash
	return nil
}

func (r *fakeResetRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, reset := range r.resets {
		if reset.ExpiresAt.Before(now) || reset.UsedAt != nil {
			delete(r.resets, id)
			n++
		}
	}
	return n, nil
}

// fakeSender запоминает отправленные письма.
type fakeSender struct {
	mu   sync.Mutex
	err  error
	sent []sentMail
}

type sentMail struct {
	to, subject, html string
}

func (s *fakeSender) Send(ctx context.Context, to, subject, html string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentMail{to: to, subject: subject, html: html})
	return nil
}

func (s *fakeSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// fakeAppointmentRepo эмулирует частичный уникальный индекс по номеру в очереди.
type fakeAppointmentRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*models.Appointment
	// conflictsLeft заставляет Create вернуть ErrQueueSlotTaken заданное число раз.
	conflictsLeft int
}

func newFakeAppointmentRepo() *fakeAppointmentRepo {
	return &fakeAppointmentRepo{items: make(map[uuid.UUID]*models.Appointment)}
}

func sameDay(a, b time.Time) bool {
	return a.Format(repository.QueueDateLayout) == b.Format(repository.QueueDateLayout)
}

func (r *fakeAppointmentRepo) CountUpcoming(ctx context.Context, department string, from, to time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, a := range r.items {
		if a.DepartmentName == department && a.IsUpcoming() && !a.DateTime.Before(from) && !a.DateTime.After(to) {
			n++
		}
	}
	return n, nil
}

func (r *fakeAppointmentRepo) MaxUpcomingQueueNumber(ctx context.Context, department string, queueDate time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	maxNumber := 0
	for _, a := range r.items {
		if a.DepartmentName == department && a.IsUpcoming() && sameDay(a.QueueDate, queueDate) {
			if n, err := strconv.Atoi(a.QueueNumber); err == nil && n > maxNumber {
				maxNumber = n
			}
		}
	}
	return maxNumber, nil
}

func (r *fakeAppointmentRepo) Create(ctx context.Context, a *models.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflictsLeft > 0 {
		r.conflictsLeft--
		return repository.ErrQueueSlotTaken
	}
	for _, other := range r.items {
		if other.DepartmentName == a.DepartmentName && other.IsUpcoming() &&
			sameDay(other.QueueDate, a.QueueDate) && other.QueueNumber == a.QueueNumber {
			return repository.ErrQueueSlotTaken
		}
	}
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	r.items[a.ID] = &cp
	return nil
}

func (r *fakeAppointmentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok {
		return nil, repository.ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *fakeAppointmentRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Appointment{}
	for _, a := range r.items {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DateTime.After(out[j].DateTime) })
	return out, nil
}

func (r *fakeAppointmentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok {
		return nil, repository.ErrAppointmentNotFound
	}
	a.Status = status
	cp := *a
	return &cp, nil
}

func (r *fakeAppointmentRepo) UpdateDateTime(ctx context.Context, id uuid.UUID, dateTime time.Time) (*models.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok {
		return nil, repository.ErrAppointmentNotFound
	}
	a.DateTime = dateTime
	cp := *a
	return &cp, nil
}

// fakePublisher запоминает опубликованные события.
type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	userID uuid.UUID
	event  string
}

func (p *fakePublisher) Publish(userID uuid.UUID, event string, data interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{userID: userID, event: event})
}

func (p *fakePublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.event)
	}
	return out
}
