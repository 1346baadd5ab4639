package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/themobileprof/telecare-be/internal/chat"
	"github.com/themobileprof/telecare-be/internal/db"
	"github.com/themobileprof/telecare-be/internal/triage"
	"github.com/themobileprof/telecare-be/pkg/auth"
)

const (
	patientID  = "11111111-1111-4111-8111-111111111111"
	patient2ID = "22222222-2222-4222-8222-222222222222"
	doctorID   = "33333333-3333-4333-8333-333333333333"
	doctor2ID  = "55555555-5555-4555-8555-555555555555"
	adminID    = "44444444-4444-4444-8444-444444444444"
	missingID  = "99999999-9999-4999-8999-999999999999"

	testPassword = "secret123"
)

// fakeDB is an in-memory stand-in for the users, appointments and records
// tables
type fakeDB struct {
	mu           sync.Mutex
	users        map[string]*db.User
	appointments map[string]*db.Appointment
	records      map[string]*db.MedicalRecord
	lastLogins   []string
}

func newFakeDB(t *testing.T) *fakeDB {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	f := &fakeDB{
		users:        map[string]*db.User{},
		appointments: map[string]*db.Appointment{},
		records:      map[string]*db.MedicalRecord{},
	}
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, u := range []db.User{
		{ID: patientID, Email: "pat@example.com", Role: auth.RolePatient, FirstName: "Pat", LastName: "Lee", IsActive: true},
		{ID: patient2ID, Email: "sam@example.com", Role: auth.RolePatient, FirstName: "Sam", LastName: "Ode", IsActive: true},
		{ID: doctorID, Email: "doc@example.com", Role: auth.RoleDoctor, FirstName: "Ada", LastName: "Obi", IsActive: true, IsVerified: true},
		{ID: doctor2ID, Email: "new@example.com", Role: auth.RoleDoctor, FirstName: "Ben", LastName: "Uzo", IsActive: true},
		{ID: adminID, Email: "admin@example.com", Role: auth.RoleAdmin, FirstName: "Root", LastName: "Admin", IsActive: true},
	} {
		u := u
		u.PasswordHash = string(hash)
		u.CreatedAt = created.Add(time.Duration(i) * time.Hour)
		f.users[u.ID] = &u
	}
	return f
}

func (f *fakeDB) CreateUser(_ context.Context, user *db.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == user.Email {
			return db.ErrAlreadyExists
		}
	}
	user.ID = uuid.NewString()
	user.IsActive = true
	user.CreatedAt = time.Now()
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeDB) GetUserByEmail(_ context.Context, email string) (*db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, db.ErrNotFound
}

func (f *fakeDB) GetUserByID(_ context.Context, id string) (*db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeDB) UpdateLastLogin(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLogins = append(f.lastLogins, id)
	return nil
}

func (f *fakeDB) UpdateProfile(_ context.Context, id string, p db.ProfileUpdate) (*db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
	if p.Phone != nil {
		u.Phone = p.Phone
	}
	if p.Bio != nil {
		u.Bio = p.Bio
	}
	cp := *u
	return &cp, nil
}

func (f *fakeDB) UpdatePassword(_ context.Context, id, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return db.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (f *fakeDB) ListUsers(_ context.Context, role auth.Role, limit, offset int) ([]db.User, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []db.User
	for _, u := range f.users {
		if role == "" || u.Role == role {
			all = append(all, *u)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := len(all)
	if offset >= total {
		return []db.User{}, total, nil
	}
	return all[offset:min(offset+limit, total)], total, nil
}

func (f *fakeDB) ListVerifiedDoctors(_ context.Context) ([]db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doctors := []db.User{}
	for _, u := range f.users {
		if u.Role == auth.RoleDoctor && u.IsVerified && u.IsActive {
			doctors = append(doctors, *u)
		}
	}
	return doctors, nil
}

func (f *fakeDB) ToggleUserActive(_ context.Context, id string) (*db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	u.IsActive = !u.IsActive
	cp := *u
	return &cp, nil
}

func (f *fakeDB) VerifyDoctor(_ context.Context, id string) (*db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok || u.Role != auth.RoleDoctor {
		return nil, db.ErrNotFound
	}
	u.IsVerified = true
	cp := *u
	return &cp, nil
}

func (f *fakeDB) DeleteUser(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return db.ErrNotFound
	}
	delete(f.users, id)
	return nil
}

func (f *fakeDB) GetUserStats(_ context.Context) (*db.UserStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &db.UserStats{}
	for _, u := range f.users {
		if !u.IsActive {
			continue
		}
		s.Users.Total++
		switch u.Role {
		case auth.RolePatient:
			s.Users.Patients++
		case auth.RoleDoctor:
			s.Users.Doctors++
		}
	}
	s.Appointments.Total = len(f.appointments)
	return s, nil
}

func (f *fakeDB) CreateAppointment(_ context.Context, a *db.Appointment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.users[a.DoctorID]
	if !ok || d.Role != auth.RoleDoctor || !d.IsActive {
		return db.ErrDoctorNotFound
	}
	a.ID = uuid.NewString()
	a.CreatedAt = time.Now()
	cp := *a
	f.appointments[a.ID] = &cp
	return nil
}

func (f *fakeDB) GetAppointment(_ context.Context, id string) (*db.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appointments[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeDB) ListAppointments(_ context.Context, userID string, asDoctor bool) ([]db.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []db.Appointment{}
	for _, a := range f.appointments {
		if (asDoctor && a.DoctorID == userID) || (!asDoctor && a.PatientID == userID) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeDB) UpdateAppointmentStatus(_ context.Context, id string, status db.AppointmentStatus, by string, reason *string) (*db.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appointments[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	a.Status = status
	if status == db.AppointmentCancelled {
		now := time.Now()
		a.CancelledBy = &by
		a.CancellationReason = reason
		a.CancelledAt = &now
	}
	cp := *a
	return &cp, nil
}

func (f *fakeDB) SetPrescription(_ context.Context, id string, p db.Prescription) (*db.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appointments[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	a.Prescription = &p
	a.Status = db.AppointmentCompleted
	cp := *a
	return &cp, nil
}

func (f *fakeDB) CreateRecord(_ context.Context, r *db.MedicalRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[r.PatientID]; !ok {
		return db.ErrNotFound
	}
	r.ID = uuid.NewString()
	if r.Tags == nil {
		r.Tags = []string{}
	}
	cp := *r
	f.records[r.ID] = &cp
	return nil
}

func (f *fakeDB) GetRecord(_ context.Context, id string) (*db.MedicalRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeDB) ListRecords(_ context.Context, patientID string, includePrivate bool) ([]db.MedicalRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []db.MedicalRecord{}
	for _, r := range f.records {
		if r.PatientID == patientID && (includePrivate || !r.IsPrivate) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeDB) UpdateRecord(_ context.Context, id string, u db.RecordUpdate) (*db.MedicalRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	if u.Title != nil {
		r.Title = *u.Title
	}
	if u.IsPrivate != nil {
		r.IsPrivate = *u.IsPrivate
	}
	if u.Tags != nil {
		r.Tags = u.Tags
	}
	cp := *r
	return &cp, nil
}

func (f *fakeDB) addRecord(patient string, private bool) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.NewString()
	doc := doctorID
	f.records[id] = &db.MedicalRecord{
		ID: id, PatientID: patient, DoctorID: &doc, RecordType: db.RecordNote,
		Title: "visit", IsPrivate: private, Tags: []string{}, Date: time.Now(),
	}
	return id
}

func (f *fakeDB) addAppointment(patient, doctor string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.NewString()
	f.appointments[id] = &db.Appointment{
		ID: id, PatientID: patient, DoctorID: doctor, Status: db.AppointmentPending,
		Type: db.AppointmentConsultation, Duration: 30, Reason: "checkup", Symptoms: []string{},
	}
	return id
}

// fakeTriages implements triage.Store
type fakeTriages struct {
	mu      sync.Mutex
	triages map[string]*triage.Triage
	clock   time.Time
}

func newFakeTriages() *fakeTriages {
	return &fakeTriages{
		triages: map[string]*triage.Triage{},
		clock:   time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}
}

func (s *fakeTriages) CreateTriage(_ context.Context, t *triage.Triage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = s.clock.Add(time.Minute)
	t.ID = uuid.NewString()
	t.CreatedAt, t.UpdatedAt = s.clock, s.clock
	cp := *t
	s.triages[t.ID] = &cp
	return nil
}

func (s *fakeTriages) GetTriage(_ context.Context, id string) (*triage.Triage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.triages[id]
	if !ok {
		return nil, triage.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *fakeTriages) UpdateTriageReview(_ context.Context, id string, r triage.Review) (*triage.Triage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.triages[id]
	if !ok {
		return nil, triage.ErrNotFound
	}
	t.ReviewedBy, t.ReviewedAt, t.DoctorNotes, t.Status = &r.ReviewedBy, &r.ReviewedAt, &r.DoctorNotes, r.Status
	cp := *t
	return &cp, nil
}

func (s *fakeTriages) ListTriages(_ context.Context, patient string, f triage.Filter, limit, offset int) ([]triage.Triage, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []triage.Triage
	for _, t := range s.triages {
		if patient != "" && t.PatientID != patient {
			continue
		}
		if (f.Status != "" && t.Status != f.Status) || (f.RiskLevel != "" && t.Assessment.RiskLevel != f.RiskLevel) {
			continue
		}
		all = append(all, *t)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := len(all)
	if offset >= total {
		return []triage.Triage{}, total, nil
	}
	return all[offset:min(offset+limit, total)], total, nil
}

func (s *fakeTriages) TriageStats(_ context.Context) (*triage.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := &triage.Stats{ByRiskLevel: map[string]int{}, ByStatus: map[string]int{}, ByUrgency: map[string]int{}}
	for _, t := range s.triages {
		st.Total++
		st.ByRiskLevel[string(t.Assessment.RiskLevel)]++
		st.ByStatus[string(t.Status)]++
		st.ByUrgency[string(t.Assessment.Urgency)]++
	}
	return st, nil
}

// fakeChats implements chat.Store
type fakeChats struct {
	mu       sync.Mutex
	chats    map[string]*chat.Chat
	messages map[string][]chat.Message
	users    *fakeDB
}

func (s *fakeChats) GetOrCreateChat(_ context.Context, a, b string) (*chat.Chat, error) {
	if _, err := s.users.GetUserByID(context.Background(), b); err != nil {
		return nil, chat.ErrParticipantNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	pair := []string{a, b}
	slices.Sort(pair)
	for _, c := range s.chats {
		if slices.Equal(c.Participants, pair) {
			cp := *c
			return &cp, nil
		}
	}
	c := &chat.Chat{ID: uuid.NewString(), Participants: pair, IsActive: true}
	s.chats[c.ID] = c
	cp := *c
	return &cp, nil
}

func (s *fakeChats) GetChat(_ context.Context, id string) (*chat.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[id]
	if !ok {
		return nil, chat.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *fakeChats) ListChats(_ context.Context, userID string) ([]chat.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []chat.Chat{}
	for _, c := range s.chats {
		if c.HasParticipant(userID) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *fakeChats) ListMessages(_ context.Context, id string) ([]chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]chat.Message{}, s.messages[id]...), nil
}

func (s *fakeChats) MarkRead(_ context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, m := range s.messages[id] {
		if m.SenderID != userID && !m.ReadByUser(userID) {
			s.messages[id][i].ReadBy = append(m.ReadBy, chat.ReadReceipt{UserID: userID, ReadAt: time.Now()})
		}
	}
	return nil
}

func (s *fakeChats) AddMessage(_ context.Context, id, sender, content string, typ chat.MessageType) (*chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := chat.Message{ID: uuid.NewString(), ChatID: id, SenderID: sender, Content: content, Type: typ, ReadBy: []chat.ReadReceipt{}, CreatedAt: time.Now()}
	s.messages[id] = append(s.messages[id], m)
	s.chats[id].LastMessage = &chat.LastMessage{Content: content, SenderID: sender, Timestamp: m.CreatedAt}
	return &m, nil
}

type notification struct {
	receiver, sender, content string
}

type fakeNotifier struct {
	mu     sync.Mutex
	sent   []notification
	online map[string]bool
	kicked []string
}

func (n *fakeNotifier) NotifyMessage(receiver, sender, content string, _ time.Time) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{receiver, sender, content})
	return n.online[receiver]
}

func (n *fakeNotifier) Disconnect(userID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.kicked = append(n.kicked, userID)
	wasOnline := n.online[userID]
	delete(n.online, userID)
	return wasOnline
}

type fakeObserver struct {
	statuses      []string
	prescriptions int
}

func (o *fakeObserver) ObserveAppointmentStatus(s string) {
	o.statuses = append(o.statuses, s)
}

func (o *fakeObserver) ObservePrescription() {
	o.prescriptions++
}

type testEnv struct {
	t        *testing.T
	router   *gin.Engine
	tokens   *auth.Manager
	handlers *Handlers
	db       *fakeDB
	triages  *fakeTriages
	chats    *fakeChats
	notifier *fakeNotifier
	observer *fakeObserver
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	tokens := auth.NewManager("test-secret", "telecare", time.Hour, 24*time.Hour)
	fdb := newFakeDB(t)
	triages := newFakeTriages()
	chats := &fakeChats{chats: map[string]*chat.Chat{}, messages: map[string][]chat.Message{}, users: fdb}
	notifier := &fakeNotifier{online: map[string]bool{}}
	observer := &fakeObserver{}

	handlers := &Handlers{
		Auth:         NewAuthHandler(fdb, tokens, logger),
		Triage:       NewTriageHandler(triage.NewService(triages, nil, logger), logger),
		Chat:         NewChatHandler(chat.NewService(chats, notifier, logger), logger),
		Appointments: NewAppointmentHandler(fdb, observer, logger),
		Records:      NewRecordHandler(fdb, logger),
		Admin:        NewAdminHandler(fdb, notifier, logger),
	}
	handlers.Auth.bcryptCost = bcrypt.MinCost

	router := gin.New()
	handlers.Register(router, tokens, fdb, nil)

	return &testEnv{
		t: t, router: router, tokens: tokens, handlers: handlers,
		db: fdb, triages: triages, chats: chats, notifier: notifier, observer: observer,
	}
}

func (e *testEnv) token(userID string) string {
	e.t.Helper()
	u, err := e.db.GetUserByID(context.Background(), userID)
	if err != nil {
		e.t.Fatalf("unknown test user %s", userID)
	}
	pair, err := e.tokens.GenerateTokenPair(u.ID, u.Email, u.Role)
	if err != nil {
		e.t.Fatalf("GenerateTokenPair: %v", err)
	}
	return pair.AccessToken
}

// do sends a JSON request as userID ("" for anonymous) and decodes the
// response body into a map
func (e *testEnv) do(method, path, userID string, body any) (*httptest.ResponseRecorder, map[string]any) {
	e.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			e.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+e.token(userID))
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			e.t.Fatalf("decode %s %s response %q: %v", method, path, w.Body.String(), err)
		}
	}
	return w, out
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d; body %s", w.Code, want, w.Body.String())
	}
}

// field walks nested JSON objects by key
func field(m map[string]any, keys ...string) any {
	var cur any = m
	for _, k := range keys {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = obj[k]
	}
	return cur
}
