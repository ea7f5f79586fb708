// Package memory provides an in-memory Repository used by the service and
// handler tests. A single mutex serializes transactions, which also stands
// in for the row-level locks the Postgres implementation takes: two
// concurrent punches on one record never interleave.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"attendance.service/internal/core/model"
	"attendance.service/internal/ports/repository"
)

// Store is the shared state behind every view of the repository.
type Store struct {
	mu sync.Mutex

	nextAttendanceID int64
	nextBreakID      int64

	attendances map[int64]*model.AttendanceRecord
	corrections map[string]*model.CorrectionRequest
}

// NewStore returns an empty in-memory repository.
func NewStore() *Store {
	return &Store{
		attendances: make(map[int64]*model.AttendanceRecord),
		corrections: make(map[string]*model.CorrectionRequest),
	}
}

// WithinTx serializes fn against all other transactions and rolls the whole
// store back to its pre-transaction snapshot if fn fails, matching the
// all-or-nothing contract of the Postgres implementation.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, r repository.Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapAtt, snapCorr := s.snapshot()
	snapAttID, snapBrkID := s.nextAttendanceID, s.nextBreakID

	if err := fn(ctx, &txView{s: s}); err != nil {
		s.attendances = snapAtt
		s.corrections = snapCorr
		s.nextAttendanceID, s.nextBreakID = snapAttID, snapBrkID
		return err
	}
	return nil
}

func (s *Store) snapshot() (map[int64]*model.AttendanceRecord, map[string]*model.CorrectionRequest) {
	att := make(map[int64]*model.AttendanceRecord, len(s.attendances))
	for id, rec := range s.attendances {
		att[id] = cloneRecord(rec)
	}
	corr := make(map[string]*model.CorrectionRequest, len(s.corrections))
	for id, req := range s.corrections {
		corr[id] = cloneCorrection(req)
	}
	return att, corr
}

// txView is a transaction-bound view: it reuses the already-held store lock
// and joins any nested WithinTx call.
type txView struct {
	s *Store
}

func (v *txView) WithinTx(ctx context.Context, fn func(ctx context.Context, r repository.Repository) error) error {
	return fn(ctx, v)
}

func (v *txView) GetAttendance(ctx context.Context, id int64, lock repository.LockMode) (*model.AttendanceRecord, error) {
	return v.s.getAttendance(id)
}

func (v *txView) FindAttendanceByUserAndDate(ctx context.Context, userID string, workDate time.Time, lock repository.LockMode) (*model.AttendanceRecord, error) {
	return v.s.findAttendance(userID, workDate), nil
}

func (v *txView) CreateAttendance(ctx context.Context, userID string, workDate time.Time) (*model.AttendanceRecord, error) {
	return v.s.createAttendance(userID, workDate), nil
}

func (v *txView) UpdateAttendance(ctx context.Context, rec *model.AttendanceRecord) error {
	return v.s.updateAttendance(rec)
}

func (v *txView) ListAttendanceByMonth(ctx context.Context, userID string, year int, month time.Month) ([]model.AttendanceRecord, error) {
	return v.s.listAttendanceByMonth(userID, year, month), nil
}

func (v *txView) InsertBreak(ctx context.Context, attendanceID int64, b model.BreakInterval) (int64, error) {
	return v.s.insertBreak(attendanceID, b)
}

func (v *txView) CloseBreak(ctx context.Context, breakID int64, end time.Time) error {
	return v.s.closeBreak(breakID, end)
}

func (v *txView) ReplaceBreaks(ctx context.Context, attendanceID int64, breaks []model.BreakInterval) error {
	return v.s.replaceBreaks(attendanceID, breaks)
}

func (v *txView) CreateCorrection(ctx context.Context, req *model.CorrectionRequest) error {
	return v.s.createCorrection(req)
}

func (v *txView) GetCorrection(ctx context.Context, id string, lock repository.LockMode) (*model.CorrectionRequest, error) {
	return v.s.getCorrection(id)
}

func (v *txView) HasPendingCorrection(ctx context.Context, attendanceID int64) (bool, error) {
	return v.s.hasPendingCorrection(attendanceID), nil
}

func (v *txView) MarkCorrectionApproved(ctx context.Context, id string, approverID string, at time.Time) (bool, error) {
	return v.s.markCorrectionApproved(id, approverID, at)
}

func (v *txView) ListCorrections(ctx context.Context, userID string, status model.RequestStatus) ([]model.CorrectionRequest, error) {
	return v.s.listCorrections(userID, status), nil
}

func (v *txView) UpdateExportStatus(ctx context.Context, id string, status model.ExportStatus, retryCount int) error {
	return v.s.updateExportStatus(id, status, retryCount)
}

// Standalone (non-transactional) calls lock the store themselves.

func (s *Store) GetAttendance(ctx context.Context, id int64, lock repository.LockMode) (*model.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getAttendance(id)
}

func (s *Store) FindAttendanceByUserAndDate(ctx context.Context, userID string, workDate time.Time, lock repository.LockMode) (*model.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findAttendance(userID, workDate), nil
}

func (s *Store) CreateAttendance(ctx context.Context, userID string, workDate time.Time) (*model.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createAttendance(userID, workDate), nil
}

func (s *Store) UpdateAttendance(ctx context.Context, rec *model.AttendanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateAttendance(rec)
}

func (s *Store) ListAttendanceByMonth(ctx context.Context, userID string, year int, month time.Month) ([]model.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listAttendanceByMonth(userID, year, month), nil
}

func (s *Store) InsertBreak(ctx context.Context, attendanceID int64, b model.BreakInterval) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertBreak(attendanceID, b)
}

func (s *Store) CloseBreak(ctx context.Context, breakID int64, end time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeBreak(breakID, end)
}

func (s *Store) ReplaceBreaks(ctx context.Context, attendanceID int64, breaks []model.BreakInterval) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replaceBreaks(attendanceID, breaks)
}

func (s *Store) CreateCorrection(ctx context.Context, req *model.CorrectionRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createCorrection(req)
}

func (s *Store) GetCorrection(ctx context.Context, id string, lock repository.LockMode) (*model.CorrectionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getCorrection(id)
}

func (s *Store) HasPendingCorrection(ctx context.Context, attendanceID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasPendingCorrection(attendanceID), nil
}

func (s *Store) MarkCorrectionApproved(ctx context.Context, id string, approverID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markCorrectionApproved(id, approverID, at)
}

func (s *Store) ListCorrections(ctx context.Context, userID string, status model.RequestStatus) ([]model.CorrectionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCorrections(userID, status), nil
}

func (s *Store) UpdateExportStatus(ctx context.Context, id string, status model.ExportStatus, retryCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateExportStatus(id, status, retryCount)
}

// Internal operations; callers hold the store lock.

func (s *Store) getAttendance(id int64) (*model.AttendanceRecord, error) {
	rec, ok := s.attendances[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (s *Store) findAttendance(userID string, workDate time.Time) *model.AttendanceRecord {
	key := workDate.Format("2006-01-02")
	for _, rec := range s.attendances {
		if rec.UserID == userID && rec.WorkDate.Format("2006-01-02") == key {
			return cloneRecord(rec)
		}
	}
	return nil
}

func (s *Store) createAttendance(userID string, workDate time.Time) *model.AttendanceRecord {
	s.nextAttendanceID++
	rec := &model.AttendanceRecord{
		ID:       s.nextAttendanceID,
		UserID:   userID,
		WorkDate: workDate,
	}
	s.attendances[rec.ID] = rec
	return cloneRecord(rec)
}

func (s *Store) updateAttendance(rec *model.AttendanceRecord) error {
	stored, ok := s.attendances[rec.ID]
	if !ok {
		return repository.ErrNotFound
	}
	stored.ClockInAt = copyTime(rec.ClockInAt)
	stored.ClockOutAt = copyTime(rec.ClockOutAt)
	stored.Note = rec.Note
	return nil
}

func (s *Store) listAttendanceByMonth(userID string, year int, month time.Month) []model.AttendanceRecord {
	var out []model.AttendanceRecord
	for _, rec := range s.attendances {
		if rec.UserID == userID && rec.WorkDate.Year() == year && rec.WorkDate.Month() == month {
			out = append(out, *cloneRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkDate.Before(out[j].WorkDate) })
	return out
}

func (s *Store) insertBreak(attendanceID int64, b model.BreakInterval) (int64, error) {
	rec, ok := s.attendances[attendanceID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	s.nextBreakID++
	b.ID = s.nextBreakID
	b.StartAt = copyTime(b.StartAt)
	b.EndAt = copyTime(b.EndAt)
	rec.Breaks = append(rec.Breaks, b)
	return b.ID, nil
}

func (s *Store) closeBreak(breakID int64, end time.Time) error {
	for _, rec := range s.attendances {
		for i := range rec.Breaks {
			if rec.Breaks[i].ID == breakID {
				e := end
				rec.Breaks[i].EndAt = &e
				return nil
			}
		}
	}
	return repository.ErrNotFound
}

func (s *Store) replaceBreaks(attendanceID int64, breaks []model.BreakInterval) error {
	rec, ok := s.attendances[attendanceID]
	if !ok {
		return repository.ErrNotFound
	}
	rec.Breaks = nil
	for _, b := range breaks {
		if _, err := s.insertBreak(attendanceID, b); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) createCorrection(req *model.CorrectionRequest) error {
	if req.Status == model.RequestPending && s.hasPendingCorrection(req.AttendanceID) {
		return repository.ErrDuplicatePending
	}
	s.corrections[req.ID] = cloneCorrection(req)
	return nil
}

func (s *Store) getCorrection(id string) (*model.CorrectionRequest, error) {
	req, ok := s.corrections[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneCorrection(req), nil
}

func (s *Store) hasPendingCorrection(attendanceID int64) bool {
	for _, req := range s.corrections {
		if req.AttendanceID == attendanceID && req.Status == model.RequestPending {
			return true
		}
	}
	return false
}

func (s *Store) markCorrectionApproved(id string, approverID string, at time.Time) (bool, error) {
	req, ok := s.corrections[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if req.Status != model.RequestPending {
		return false, nil
	}
	req.Status = model.RequestApproved
	by := approverID
	stamp := at
	req.ApprovedBy = &by
	req.ApprovedAt = &stamp
	return true, nil
}

func (s *Store) listCorrections(userID string, status model.RequestStatus) []model.CorrectionRequest {
	var out []model.CorrectionRequest
	for _, req := range s.corrections {
		if req.Status != status {
			continue
		}
		if userID != "" && req.UserID != userID {
			continue
		}
		out = append(out, *cloneCorrection(req))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *Store) updateExportStatus(id string, status model.ExportStatus, retryCount int) error {
	req, ok := s.corrections[id]
	if !ok {
		return repository.ErrNotFound
	}
	req.ExportStatus = status
	req.ExportRetryCount = retryCount
	return nil
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func cloneRecord(rec *model.AttendanceRecord) *model.AttendanceRecord {
	c := *rec
	c.ClockInAt = copyTime(rec.ClockInAt)
	c.ClockOutAt = copyTime(rec.ClockOutAt)
	c.Breaks = make([]model.BreakInterval, len(rec.Breaks))
	for i, b := range rec.Breaks {
		b.StartAt = copyTime(b.StartAt)
		b.EndAt = copyTime(b.EndAt)
		c.Breaks[i] = b
	}
	return &c
}

func cloneCorrection(req *model.CorrectionRequest) *model.CorrectionRequest {
	c := *req
	c.ApprovedAt = copyTime(req.ApprovedAt)
	if req.ApprovedBy != nil {
		by := *req.ApprovedBy
		c.ApprovedBy = &by
	}
	if req.ProposedClockIn != nil {
		in := *req.ProposedClockIn
		c.ProposedClockIn = &in
	}
	if req.ProposedClockOut != nil {
		out := *req.ProposedClockOut
		c.ProposedClockOut = &out
	}
	c.ProposedBreaks = append([]model.ProposedBreak(nil), req.ProposedBreaks...)
	if req.Payload != nil {
		p := *req.Payload
		p.Breaks = append([]model.LegacyBreak(nil), req.Payload.Breaks...)
		c.Payload = &p
	}
	return &c
}
