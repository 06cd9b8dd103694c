package repository

import (
    "context"
    "database/sql"
    "errors"
    "strings"
    "time"

    "github.com/feastfriends/feastfriends/internal/model"
)

// RoomRepo provides data access to the rooms and room_members tables.
// Membership mutations run inside transactions that lock the room row
// (SELECT ... FOR UPDATE) so concurrent joins, leaves and the expiry sweep
// observe a consistent member set and cannot exceed capacity.  All
// timestamps are stored and compared in UTC.
type RoomRepo struct {
    db *sql.DB
}

// NewRoomRepo returns a new RoomRepo bound to the provided database.
func NewRoomRepo(db *sql.DB) *RoomRepo { return &RoomRepo{db: db} }

// CreateRoom inserts a new waiting room together with its initial members
// and populates the generated ID and timestamps on the provided model.
func (r *RoomRepo) CreateRoom(ctx context.Context, room *model.Room) error {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    var cuisine any
    if room.Cuisine != "" {
        cuisine = room.Cuisine
    }
    res, err := tx.ExecContext(ctx,
        `INSERT INTO rooms (completion_time, max_members, status, cuisine, average_budget, average_radius)
         VALUES (?, ?, ?, ?, ?, ?)`,
        room.CompletionTime.UTC().Format("2006-01-02 15:04:05"),
        room.MaxMembers, room.Status, cuisine, room.AverageBudget, room.AverageRadius,
    )
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    room.ID = uint64(id)

    if len(room.Members) > 0 {
        query := `INSERT INTO room_members (room_id, user_id) VALUES `
        args := make([]interface{}, 0, len(room.Members)*2)
        for i, uid := range room.Members {
            if i > 0 {
                query += ","
            }
            query += "(?, ?)"
            args = append(args, room.ID, uid)
        }
        if _, err := tx.ExecContext(ctx, query, args...); err != nil {
            return err
        }
    }

    // Read back timestamps set by the database.
    if err := tx.QueryRowContext(ctx,
        `SELECT created_at, updated_at FROM rooms WHERE id = ?`, room.ID,
    ).Scan(&room.CreatedAt, &room.UpdatedAt); err != nil {
        return err
    }

    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}

// GetRoom loads a room with its members.  Returns ErrRoomNotFound when the
// room does not exist.
func (r *RoomRepo) GetRoom(ctx context.Context, roomID uint64) (*model.Room, error) {
    room, err := scanRoom(r.db.QueryRowContext(ctx,
        `SELECT id, completion_time, max_members, status, cuisine, average_budget, average_radius, created_at, updated_at
         FROM rooms WHERE id = ?`, roomID))
    if err != nil {
        return nil, err
    }
    members, err := r.membersOf(ctx, r.db, roomID)
    if err != nil {
        return nil, err
    }
    room.Members = members
    return room, nil
}

// FindOpenRooms returns all WAITING rooms whose deadline lies in the
// future and that still have spare capacity.  The coordinator scores these
// candidates against the joiner's preferences; the room row itself is not
// locked here, so a subsequent AddMember may still fail with ErrConflict.
func (r *RoomRepo) FindOpenRooms(ctx context.Context, now time.Time) ([]model.Room, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT rm.id, rm.completion_time, rm.max_members, rm.status, rm.cuisine, rm.average_budget, rm.average_radius, rm.created_at, rm.updated_at
         FROM rooms rm
         WHERE rm.status = ? AND rm.completion_time > ?
           AND (SELECT COUNT(*) FROM room_members m WHERE m.room_id = rm.id) < rm.max_members`,
        model.RoomStatusWaiting, now.UTC().Format("2006-01-02 15:04:05"))
    if err != nil {
        return nil, err
    }
    return r.collectRooms(ctx, rows)
}

// FindExpiredWaiting returns all WAITING rooms whose deadline has passed,
// with members loaded, for the expiry sweep.
func (r *RoomRepo) FindExpiredWaiting(ctx context.Context, now time.Time) ([]model.Room, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT id, completion_time, max_members, status, cuisine, average_budget, average_radius, created_at, updated_at
         FROM rooms WHERE status = ? AND completion_time < ?`,
        model.RoomStatusWaiting, now.UTC().Format("2006-01-02 15:04:05"))
    if err != nil {
        return nil, err
    }
    return r.collectRooms(ctx, rows)
}

// FindUnconvertedMatched returns MATCHED rooms that have no group row yet,
// with members loaded.  Such rooms only exist when the process died between
// the WAITING to MATCHED swap and the group insert; the sweep resumes the
// conversion for them.
func (r *RoomRepo) FindUnconvertedMatched(ctx context.Context) ([]model.Room, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT rm.id, rm.completion_time, rm.max_members, rm.status, rm.cuisine, rm.average_budget, rm.average_radius, rm.created_at, rm.updated_at
         FROM rooms rm
         LEFT JOIN `+"`groups`"+` g ON g.room_id = rm.id
         WHERE rm.status = ? AND g.id IS NULL`,
        model.RoomStatusMatched)
    if err != nil {
        return nil, err
    }
    return r.collectRooms(ctx, rows)
}

// AddMember appends a user to a room, guarding against the full/expired
// race: the room row is locked, the status and deadline are re-checked and
// the member count is validated inside the same transaction.  It returns
// the updated room, or ErrRoomNotFound, ErrRoomFull, or ErrConflict when
// the room matched/expired in the meantime or the user is already a member.
func (r *RoomRepo) AddMember(ctx context.Context, roomID, userID uint64) (*model.Room, error) {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    room, err := scanRoom(tx.QueryRowContext(ctx,
        `SELECT id, completion_time, max_members, status, cuisine, average_budget, average_radius, created_at, updated_at
         FROM rooms WHERE id = ? FOR UPDATE`, roomID))
    if err != nil {
        return nil, err
    }
    if room.Status != model.RoomStatusWaiting || room.IsExpired(time.Now().UTC()) {
        return nil, ErrConflict
    }

    members, err := r.membersOf(ctx, tx, roomID)
    if err != nil {
        return nil, err
    }
    for _, id := range members {
        if id == userID {
            return nil, ErrConflict
        }
    }
    if len(members) >= room.MaxMembers {
        return nil, ErrRoomFull
    }

    if _, err := tx.ExecContext(ctx,
        `INSERT INTO room_members (room_id, user_id) VALUES (?, ?)`, roomID, userID); err != nil {
        return nil, err
    }
    room.Members = append(members, userID)

    if err := tx.Commit(); err != nil {
        return nil, err
    }
    committed = true
    return room, nil
}

// RemoveMember removes a user from a room and returns the updated room.
// Membership is frozen once the room leaves WAITING: MATCHED and EXPIRED
// are terminal, so removal against either returns ErrConflict inside the
// same locked transaction.  Returns ErrRoomNotFound when the room is
// absent and ErrNotMember when the user is not in it.
func (r *RoomRepo) RemoveMember(ctx context.Context, roomID, userID uint64) (*model.Room, error) {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    room, err := scanRoom(tx.QueryRowContext(ctx,
        `SELECT id, completion_time, max_members, status, cuisine, average_budget, average_radius, created_at, updated_at
         FROM rooms WHERE id = ? FOR UPDATE`, roomID))
    if err != nil {
        return nil, err
    }
    if room.Status != model.RoomStatusWaiting {
        return nil, ErrConflict
    }

    res, err := tx.ExecContext(ctx,
        `DELETE FROM room_members WHERE room_id = ? AND user_id = ?`, roomID, userID)
    if err != nil {
        return nil, err
    }
    if n, _ := res.RowsAffected(); n == 0 {
        return nil, ErrNotMember
    }

    members, err := r.membersOf(ctx, tx, roomID)
    if err != nil {
        return nil, err
    }
    room.Members = members

    if err := tx.Commit(); err != nil {
        return nil, err
    }
    committed = true
    return room, nil
}

// SetAggregates persists the recomputed average budget and radius for a
// room after a membership change.
func (r *RoomRepo) SetAggregates(ctx context.Context, roomID uint64, avgBudget, avgRadius float64) error {
    _, err := r.db.ExecContext(ctx,
        `UPDATE rooms SET average_budget = ?, average_radius = ? WHERE id = ?`,
        avgBudget, avgRadius, roomID)
    return err
}

// MarkStatus flips the room status from expected to next as a single
// compare-and-swap.  It reports whether the swap happened; a false return
// means another path (fill vs sweep) already claimed the transition.
func (r *RoomRepo) MarkStatus(ctx context.Context, roomID uint64, expected, next string) (bool, error) {
    res, err := r.db.ExecContext(ctx,
        `UPDATE rooms SET status = ? WHERE id = ? AND status = ?`, next, roomID, expected)
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return false, err
    }
    return n == 1, nil
}

// DeleteRoom removes a room and its remaining membership rows.  Used when
// the last member leaves.
func (r *RoomRepo) DeleteRoom(ctx context.Context, roomID uint64) error {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    if _, err := tx.ExecContext(ctx, `DELETE FROM room_members WHERE room_id = ?`, roomID); err != nil {
        return err
    }
    if _, err := tx.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, roomID); err != nil {
        return err
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}

// queryer abstracts *sql.DB and *sql.Tx for read helpers.
type queryer interface {
    QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// membersOf returns the member IDs of a room ordered by insertion.
func (r *RoomRepo) membersOf(ctx context.Context, q queryer, roomID uint64) ([]uint64, error) {
    rows, err := q.QueryContext(ctx,
        `SELECT user_id FROM room_members WHERE room_id = ? ORDER BY user_id`, roomID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    members := make([]uint64, 0, 4)
    for rows.Next() {
        var uid uint64
        if err := rows.Scan(&uid); err != nil {
            return nil, err
        }
        members = append(members, uid)
    }
    return members, rows.Err()
}

// collectRooms drains a room query and attaches members to each row using
// a single IN query.
func (r *RoomRepo) collectRooms(ctx context.Context, rows *sql.Rows) ([]model.Room, error) {
    defer rows.Close()
    roomList := make([]model.Room, 0)
    index := make(map[uint64]int)
    for rows.Next() {
        room, err := scanRoomRows(rows)
        if err != nil {
            return nil, err
        }
        room.Members = []uint64{}
        index[room.ID] = len(roomList)
        roomList = append(roomList, *room)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    if len(roomList) == 0 {
        return roomList, nil
    }

    ids := make([]interface{}, 0, len(roomList))
    placeholders := make([]string, 0, len(roomList))
    for _, rm := range roomList {
        ids = append(ids, rm.ID)
        placeholders = append(placeholders, "?")
    }
    mrows, err := r.db.QueryContext(ctx,
        `SELECT room_id, user_id FROM room_members WHERE room_id IN (`+strings.Join(placeholders, ",")+`) ORDER BY room_id, user_id`,
        ids...)
    if err != nil {
        return nil, err
    }
    defer mrows.Close()
    for mrows.Next() {
        var rid, uid uint64
        if err := mrows.Scan(&rid, &uid); err != nil {
            return nil, err
        }
        if idx, ok := index[rid]; ok {
            roomList[idx].Members = append(roomList[idx].Members, uid)
        }
    }
    return roomList, mrows.Err()
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
    Scan(dest ...any) error
}

func scanRoom(row rowScanner) (*model.Room, error) {
    room, err := scanRoomRows(row)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrRoomNotFound
    }
    return room, err
}

func scanRoomRows(row rowScanner) (*model.Room, error) {
    var room model.Room
    var cuisine sql.NullString
    if err := row.Scan(&room.ID, &room.CompletionTime, &room.MaxMembers, &room.Status,
        &cuisine, &room.AverageBudget, &room.AverageRadius, &room.CreatedAt, &room.UpdatedAt); err != nil {
        return nil, err
    }
    if cuisine.Valid {
        room.Cuisine = cuisine.String
    }
    return &room, nil
}
