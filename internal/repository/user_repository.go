package repository

import (
    "context"
    "database/sql"
    "errors"
    "strings"

    "golang.org/x/crypto/bcrypt"

    "github.com/feastfriends/feastfriends/internal/model"
)

// UserRepo provides data access to the users table.  The matching core
// uses it as its user directory: reading preferences for room scoring and
// flipping room/group references and status as transitions commit.
type UserRepo struct {
    db *sql.DB
}

// NewUserRepo returns a new UserRepo bound to the provided database.
func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

// Create inserts a new user with a bcrypt-hashed password and returns the
// generated ID.  Returns ErrEmailExists on a duplicate email.
func (r *UserRepo) Create(ctx context.Context, email, password, name string, bcryptCost int) (uint64, error) {
    hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
    if err != nil {
        return 0, err
    }
    res, err := r.db.ExecContext(ctx,
        `INSERT INTO users (email, password_hash, name, status) VALUES (?, ?, ?, ?)`,
        email, string(hash), name, model.UserStatusOnline)
    if err != nil {
        // MySQL duplicate key error for the unique email index.
        if strings.Contains(err.Error(), "Duplicate entry") {
            return 0, ErrEmailExists
        }
        return 0, err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return 0, err
    }
    return uint64(id), nil
}

// GetUser loads a user by ID.  Returns ErrUserNotFound when absent.
func (r *UserRepo) GetUser(ctx context.Context, userID uint64) (*model.User, error) {
    return r.scanUser(r.db.QueryRowContext(ctx,
        `SELECT id, email, password_hash, name, status, current_room_id, current_group_id,
                cuisines, budget, radius_km, created_at, updated_at
         FROM users WHERE id = ?`, userID))
}

// GetByEmail loads a user by email.  Returns ErrUserNotFound when absent.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
    return r.scanUser(r.db.QueryRowContext(ctx,
        `SELECT id, email, password_hash, name, status, current_room_id, current_group_id,
                cuisines, budget, radius_km, created_at, updated_at
         FROM users WHERE email = ?`, email))
}

// GetUsers loads multiple users in one query.  Missing IDs are skipped, so
// the result may be shorter than the input.
func (r *UserRepo) GetUsers(ctx context.Context, userIDs []uint64) ([]model.User, error) {
    if len(userIDs) == 0 {
        return []model.User{}, nil
    }
    args := make([]interface{}, 0, len(userIDs))
    placeholders := make([]string, 0, len(userIDs))
    for _, id := range userIDs {
        args = append(args, id)
        placeholders = append(placeholders, "?")
    }
    rows, err := r.db.QueryContext(ctx,
        `SELECT id, email, password_hash, name, status, current_room_id, current_group_id,
                cuisines, budget, radius_km, created_at, updated_at
         FROM users WHERE id IN (`+strings.Join(placeholders, ",")+`)`, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    users := make([]model.User, 0, len(userIDs))
    for rows.Next() {
        u, err := scanUserRow(rows)
        if err != nil {
            return nil, err
        }
        users = append(users, *u)
    }
    return users, rows.Err()
}

// UpdatePreferences persists the preferences supplied with a join request.
// Nil values leave the stored preference untouched.
func (r *UserRepo) UpdatePreferences(ctx context.Context, userID uint64, cuisines []string, budget, radiusKm *float64) error {
    sets := make([]string, 0, 3)
    args := make([]interface{}, 0, 4)
    if cuisines != nil {
        sets = append(sets, "cuisines = ?")
        args = append(args, strings.Join(cuisines, ","))
    }
    if budget != nil {
        sets = append(sets, "budget = ?")
        args = append(args, *budget)
    }
    if radiusKm != nil {
        sets = append(sets, "radius_km = ?")
        args = append(args, *radiusKm)
    }
    if len(sets) == 0 {
        return nil
    }
    args = append(args, userID)
    _, err := r.db.ExecContext(ctx,
        `UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
    return err
}

// SetRoomStatus updates the room reference and status of the given users
// in one statement.  A nil roomID clears the reference.
func (r *UserRepo) SetRoomStatus(ctx context.Context, userIDs []uint64, roomID *uint64, status string) error {
    if len(userIDs) == 0 {
        return nil
    }
    args := make([]interface{}, 0, len(userIDs)+2)
    var rid any
    if roomID != nil {
        rid = *roomID
    }
    args = append(args, rid, status)
    placeholders := make([]string, 0, len(userIDs))
    for _, id := range userIDs {
        args = append(args, id)
        placeholders = append(placeholders, "?")
    }
    _, err := r.db.ExecContext(ctx,
        `UPDATE users SET current_room_id = ?, status = ? WHERE id IN (`+strings.Join(placeholders, ",")+`)`,
        args...)
    return err
}

// SetGroupStatus updates the group reference and status of the given
// users, clearing any room reference at the same time: a user moves from
// room to group in one write.
func (r *UserRepo) SetGroupStatus(ctx context.Context, userIDs []uint64, groupID *uint64, status string) error {
    if len(userIDs) == 0 {
        return nil
    }
    args := make([]interface{}, 0, len(userIDs)+2)
    var gid any
    if groupID != nil {
        gid = *groupID
    }
    args = append(args, gid, status)
    placeholders := make([]string, 0, len(userIDs))
    for _, id := range userIDs {
        args = append(args, id)
        placeholders = append(placeholders, "?")
    }
    _, err := r.db.ExecContext(ctx,
        `UPDATE users SET current_group_id = ?, current_room_id = NULL, status = ? WHERE id IN (`+strings.Join(placeholders, ",")+`)`,
        args...)
    return err
}

func (r *UserRepo) scanUser(row *sql.Row) (*model.User, error) {
    u, err := scanUserRow(row)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrUserNotFound
    }
    return u, err
}

func scanUserRow(row rowScanner) (*model.User, error) {
    var u model.User
    var roomID, groupID sql.NullInt64
    var cuisines sql.NullString
    if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Status,
        &roomID, &groupID, &cuisines, &u.Budget, &u.RadiusKm, &u.CreatedAt, &u.UpdatedAt); err != nil {
        return nil, err
    }
    if roomID.Valid {
        rid := uint64(roomID.Int64)
        u.CurrentRoomID = &rid
    }
    if groupID.Valid {
        gid := uint64(groupID.Int64)
        u.CurrentGroupID = &gid
    }
    if cuisines.Valid && cuisines.String != "" {
        u.Cuisines = strings.Split(cuisines.String, ",")
    }
    return &u, nil
}
