package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"clinic-queue/internal/domain/entity"
	"clinic-queue/internal/domain/repository"
	"clinic-queue/internal/realtime"
	"clinic-queue/internal/service"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
}

// fakeTicketRepo keeps tickets in memory and enforces the open-ticket unique indexes
type fakeTicketRepo struct {
	mu      sync.Mutex
	tickets map[uuid.UUID]entity.Ticket
	doctors map[uuid.UUID]*entity.Doctor
	err     error
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: map[uuid.UUID]entity.Ticket{}, doctors: map[uuid.UUID]*entity.Doctor{}}
}

func (r *fakeTicketRepo) checkUnique(t *entity.Ticket) error {
	if t.IsDeleted() {
		return nil
	}
	for id, other := range r.tickets {
		if id == t.ID || other.IsDeleted() {
			continue
		}
		if other.Code == t.Code {
			return uniqueViolation("uq_patients_open_code")
		}
		if other.DoctorID == t.DoctorID && other.IdentityKey == t.IdentityKey {
			return uniqueViolation("uq_patients_open_identity")
		}
	}
	return nil
}

func (r *fakeTicketRepo) Create(db *gorm.DB, ticket *entity.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkUnique(ticket); err != nil {
		return err
	}
	now := time.Now().UTC()
	ticket.CreatedAt, ticket.UpdatedAt = now, now
	stored := *ticket
	stored.Doctor = nil
	r.tickets[ticket.ID] = stored
	return nil
}

func (r *fakeTicketRepo) Save(db *gorm.DB, ticket *entity.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkUnique(ticket); err != nil {
		return err
	}
	ticket.UpdatedAt = time.Now().UTC()
	stored := *ticket
	stored.Doctor = nil
	r.tickets[ticket.ID] = stored
	return nil
}

func (r *fakeTicketRepo) get(id uuid.UUID) *entity.Ticket {
	t, ok := r.tickets[id]
	if !ok {
		return nil
	}
	t.Doctor = r.doctors[t.DoctorID]
	return &t
}

func (r *fakeTicketRepo) FindByID(db *gorm.DB, id uuid.UUID) (*entity.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return r.get(id), nil
}

func (r *fakeTicketRepo) FindByIDForUpdate(db *gorm.DB, id uuid.UUID) (*entity.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	t := r.get(id)
	if t != nil {
		t.Doctor = nil
	}
	return t, nil
}

func (r *fakeTicketRepo) FindOpenByIdentity(db *gorm.DB, doctorID uuid.UUID, identityKey string) (*entity.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, t := range r.tickets {
		if t.DoctorID == doctorID && t.IdentityKey == identityKey && !t.IsDeleted() {
			return r.get(id), nil
		}
	}
	return nil, nil
}

func (r *fakeTicketRepo) FindOpenByCode(db *gorm.DB, code string) (*entity.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, t := range r.tickets {
		if (t.Code == code || t.PatientCode == code) && !t.IsDeleted() {
			return r.get(id), nil
		}
	}
	return nil, nil
}

func (r *fakeTicketRepo) FindByStatus(db *gorm.DB, status entity.TicketStatus) ([]entity.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var out []entity.Ticket
	for id, t := range r.tickets {
		if t.Status == status {
			out = append(out, *r.get(id))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DoctorID != out[j].DoctorID {
			return out[i].DoctorID.String() < out[j].DoctorID.String()
		}
		if out[i].CodeSeq != out[j].CodeSeq {
			return out[i].CodeSeq < out[j].CodeSeq
		}
		return out[i].Code < out[j].Code
	})
	return out, nil
}

func (r *fakeTicketRepo) FindActiveByDoctor(db *gorm.DB, doctorID uuid.UUID) ([]entity.Ticket, error) {
	all, err := r.FindByStatus(db, entity.TicketStatusActive)
	if err != nil {
		return nil, err
	}
	var out []entity.Ticket
	for _, t := range all {
		if t.DoctorID == doctorID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeTicketRepo) FindCreatedBetween(db *gorm.DB, from, to time.Time) ([]entity.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.Ticket
	for id, t := range r.tickets {
		if !t.CreatedAt.Before(from) && t.CreatedAt.Before(to) {
			out = append(out, *r.get(id))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeTicketRepo) CountActiveByDoctor(db *gorm.DB, doctorID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, t := range r.tickets {
		if t.DoctorID == doctorID && t.IsActive() {
			n++
		}
	}
	return n, nil
}

func (r *fakeTicketRepo) PurgeDeletedBefore(db *gorm.DB, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, t := range r.tickets {
		if t.IsDeleted() && t.DeletedAt != nil && t.DeletedAt.Before(before) {
			delete(r.tickets, id)
			n++
		}
	}
	return n, nil
}

type fakeTurnRepo struct {
	mu     sync.Mutex
	nextID int64
	turns  []entity.Turn
}

func (r *fakeTurnRepo) Create(db *gorm.DB, turn *entity.Turn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.turns {
		if t.Code == turn.Code {
			return uniqueViolation("turns_codigo_turno_key")
		}
	}
	r.nextID++
	turn.ID = r.nextID
	turn.CreatedAt = time.Now().UTC()
	r.turns = append(r.turns, *turn)
	return nil
}

func (r *fakeTurnRepo) MarkPending(db *gorm.DB, ticketID uuid.UUID, status entity.TurnStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.turns {
		if r.turns[i].TicketID == ticketID && r.turns[i].Status == entity.TurnStatusPending {
			r.turns[i].Status = status
		}
	}
	return nil
}

func (r *fakeTurnRepo) FindByTicket(db *gorm.DB, ticketID uuid.UUID) ([]entity.Turn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.Turn
	for i := len(r.turns) - 1; i >= 0; i-- {
		if r.turns[i].TicketID == ticketID {
			out = append(out, r.turns[i])
		}
	}
	return out, nil
}

func (r *fakeTurnRepo) PruneHistory(db *gorm.DB, ticketID uuid.UUID, keep int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := 0
	var kept []entity.Turn
	var pruned int64
	for i := len(r.turns) - 1; i >= 0; i-- {
		t := r.turns[i]
		if t.TicketID == ticketID {
			seen++
			if seen > keep {
				pruned++
				continue
			}
		}
		kept = append([]entity.Turn{t}, kept...)
	}
	r.turns = kept
	return pruned, nil
}

func (r *fakeTurnRepo) MaxSeqByDoctor(db *gorm.DB) ([]repository.DoctorSeq, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	max := map[uuid.UUID]int64{}
	for _, t := range r.turns {
		if t.Seq > max[t.DoctorID] {
			max[t.DoctorID] = t.Seq
		}
	}
	var out []repository.DoctorSeq
	for id, seq := range max {
		out = append(out, repository.DoctorSeq{DoctorID: id, MaxSeq: seq})
	}
	return out, nil
}

func (r *fakeTurnRepo) CountByDoctorBetween(db *gorm.DB, from, to time.Time) ([]repository.TurnCounts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[uuid.UUID]*repository.TurnCounts{}
	var order []uuid.UUID
	for _, t := range r.turns {
		if t.CreatedAt.Before(from) || !t.CreatedAt.Before(to) {
			continue
		}
		c, ok := counts[t.DoctorID]
		if !ok {
			c = &repository.TurnCounts{DoctorID: t.DoctorID}
			counts[t.DoctorID] = c
			order = append(order, t.DoctorID)
		}
		c.Issued++
		switch t.Status {
		case entity.TurnStatusReplaced:
			c.Replaced++
		case entity.TurnStatusCancelled:
			c.Cancelled++
		}
	}
	var out []repository.TurnCounts
	for _, id := range order {
		out = append(out, *counts[id])
	}
	return out, nil
}

type fakeDoctorRepo struct {
	mu      sync.Mutex
	doctors []*entity.Doctor
}

func (r *fakeDoctorRepo) add(d *entity.Doctor) *entity.Doctor {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	r.doctors = append(r.doctors, d)
	return d
}

func (r *fakeDoctorRepo) Create(db *gorm.DB, doctor *entity.Doctor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.doctors {
		if d.CodePrefix == doctor.CodePrefix {
			return uniqueViolation("doctors_code_prefix_key")
		}
	}
	copied := *doctor
	r.doctors = append(r.doctors, &copied)
	return nil
}

func (r *fakeDoctorRepo) Update(db *gorm.DB, doctor *entity.Doctor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, d := range r.doctors {
		if d.ID == doctor.ID {
			copied := *doctor
			r.doctors[i] = &copied
		}
	}
	return nil
}

func (r *fakeDoctorRepo) Delete(db *gorm.DB, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, d := range r.doctors {
		if d.ID == id {
			r.doctors = append(r.doctors[:i], r.doctors[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *fakeDoctorRepo) FindByID(db *gorm.DB, id uuid.UUID) (*entity.Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.doctors {
		if d.ID == id {
			copied := *d
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeDoctorRepo) FindByUserID(db *gorm.DB, userID uuid.UUID) (*entity.Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.doctors {
		if d.UserID != nil && *d.UserID == userID {
			copied := *d
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeDoctorRepo) FindAll(db *gorm.DB, activeOnly bool) ([]entity.Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.Doctor
	for _, d := range r.doctors {
		if activeOnly && !d.IsActive {
			continue
		}
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (r *fakeDoctorRepo) PrefixExists(db *gorm.DB, prefix string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.doctors {
		if d.CodePrefix == prefix {
			return true, nil
		}
	}
	return false, nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]entity.User
}

func newFakeUserRepo(users ...entity.User) *fakeUserRepo {
	r := &fakeUserRepo{users: map[uuid.UUID]entity.User{}}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) Create(db *gorm.DB, user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username {
			return uniqueViolation("users_usuario_key")
		}
	}
	r.users[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) Update(db *gorm.DB, user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) Delete(db *gorm.DB, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
	return nil
}

func (r *fakeUserRepo) FindByID(db *gorm.DB, id uuid.UUID) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *fakeUserRepo) FindByUsername(db *gorm.DB, username string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			found := u
			return &found, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) FindAll(db *gorm.DB) ([]entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.User
	for _, u := range r.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (r *fakeUserRepo) FindActiveByRole(db *gorm.DB, role string) ([]entity.User, error) {
	all, _ := r.FindAll(db)
	var out []entity.User
	for _, u := range all {
		if u.Role == role && u.IsActive {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) Count(db *gorm.DB) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.users)), nil
}

type fakeScreenRepo struct {
	mu      sync.Mutex
	screens map[uuid.UUID]entity.Screen
}

func newFakeScreenRepo(n int) *fakeScreenRepo {
	r := &fakeScreenRepo{screens: map[uuid.UUID]entity.Screen{}}
	for i := 1; i <= n; i++ {
		id := uuid.New()
		r.screens[id] = entity.Screen{ID: id, Number: i, Name: "Pantalla", State: entity.ScreenStateAvailable}
	}
	return r
}

func (r *fakeScreenRepo) byNumber(n int) entity.Screen {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.screens {
		if s.Number == n {
			return s
		}
	}
	return entity.Screen{}
}

func (r *fakeScreenRepo) Create(db *gorm.DB, screen *entity.Screen) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.screens[screen.ID] = *screen
	return nil
}

func (r *fakeScreenRepo) Save(db *gorm.DB, screen *entity.Screen) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if screen.DeviceID != nil {
		for id, s := range r.screens {
			if id != screen.ID && s.DeviceID != nil && *s.DeviceID == *screen.DeviceID {
				return uniqueViolation("screens_device_id_key")
			}
		}
	}
	stored := *screen
	stored.Receptionist = nil
	r.screens[screen.ID] = stored
	return nil
}

func (r *fakeScreenRepo) Count(db *gorm.DB) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.screens)), nil
}

func (r *fakeScreenRepo) FindAll(db *gorm.DB) ([]entity.Screen, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.Screen
	for _, s := range r.screens {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (r *fakeScreenRepo) FindByID(db *gorm.DB, id uuid.UUID) (*entity.Screen, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.screens[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *fakeScreenRepo) FindByIDForUpdate(db *gorm.DB, id uuid.UUID) (*entity.Screen, error) {
	return r.FindByID(db, id)
}

func (r *fakeScreenRepo) FindByDevice(db *gorm.DB, deviceID string) (*entity.Screen, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.screens {
		if s.DeviceID != nil && *s.DeviceID == deviceID {
			found := s
			return &found, nil
		}
	}
	return nil, nil
}

func (r *fakeScreenRepo) AcquireAvailable(db *gorm.DB) (*entity.Screen, error) {
	all, _ := r.FindAll(db)
	for _, s := range all {
		if s.IsAvailable() {
			found := s
			return &found, nil
		}
	}
	return nil, nil
}

func (r *fakeScreenRepo) TouchLastSeen(db *gorm.DB, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.screens[id]
	s.LastSeenAt = &at
	r.screens[id] = s
	return nil
}

func (r *fakeScreenRepo) ReleaseStalePending(db *gorm.DB, seenBefore time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.screens {
		if s.IsPending() && (s.LastSeenAt == nil || s.LastSeenAt.Before(seenBefore)) {
			s.Release()
			r.screens[id] = s
			n++
		}
	}
	return n, nil
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []service.AuditEntry
}

func (a *fakeAudit) Record(tx *gorm.DB, entry service.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
	return nil
}

func (a *fakeAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.entries))
	for i, e := range a.entries {
		out[i] = e.Action
	}
	return out
}

type fakePublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (p *fakePublisher) Publish(ctx context.Context, event realtime.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *fakePublisher) all() []realtime.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]realtime.Event(nil), p.events...)
}

type fakeMailer struct {
	to, link string
	sent     int
}

func (m *fakeMailer) SendPasswordReset(to, fullName, link string) error {
	m.to, m.link = to, link
	m.sent++
	return nil
}
