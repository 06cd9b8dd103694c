package repository

import (
    "context"
    "database/sql"
    "errors"
    "strings"
    "time"

    "github.com/feastfriends/feastfriends/internal/model"
)

// GroupRepo provides data access to the groups, group_members, group_votes
// and group_restaurants tables.  Vote and membership mutations lock the
// group row so concurrent votes, leaves and the expiry sweep stay
// linearizable per group; finalization is a compare-and-swap on
// restaurant_selected.  All timestamps are stored in UTC.
type GroupRepo struct {
    db *sql.DB
}

// NewGroupRepo returns a new GroupRepo bound to the provided database.
func NewGroupRepo(db *sql.DB) *GroupRepo { return &GroupRepo{db: db} }

// CreateGroup inserts a group with its members and populates the generated
// ID and timestamps on the provided model.  room_id carries a unique index,
// so a second insert for the same room returns ErrConflict; callers treat
// that as the conversion having already completed.
func (r *GroupRepo) CreateGroup(ctx context.Context, g *model.Group) error {
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

    res, err := tx.ExecContext(ctx,
        "INSERT INTO `groups` (room_id, completion_time, status, restaurant_selected) VALUES (?, ?, ?, 0)",
        g.RoomID, g.CompletionTime.UTC().Format("2006-01-02 15:04:05"), g.Status)
    if err != nil {
        if strings.Contains(err.Error(), "Duplicate entry") {
            return ErrConflict
        }
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    g.ID = uint64(id)

    if len(g.Members) > 0 {
        query := `INSERT INTO group_members (group_id, user_id) VALUES `
        args := make([]interface{}, 0, len(g.Members)*2)
        for i, uid := range g.Members {
            if i > 0 {
                query += ","
            }
            query += "(?, ?)"
            args = append(args, g.ID, uid)
        }
        if _, err := tx.ExecContext(ctx, query, args...); err != nil {
            return err
        }
    }

    if err := tx.QueryRowContext(ctx,
        "SELECT created_at, updated_at FROM `groups` WHERE id = ?", g.ID,
    ).Scan(&g.CreatedAt, &g.UpdatedAt); err != nil {
        return err
    }

    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}

// GetGroup loads a group with members, votes and restaurant snapshots.
// Returns ErrGroupNotFound when the group does not exist.
func (r *GroupRepo) GetGroup(ctx context.Context, groupID uint64) (*model.Group, error) {
    g, err := r.loadGroup(ctx, r.db, groupID, false)
    if err != nil {
        return nil, err
    }
    return g, nil
}

// UpsertVote records or replaces a member's vote inside a single
// transaction, caching the restaurant snapshot when one is provided.  It
// returns the updated group.  Returns ErrGroupNotFound, ErrNotMember, or
// ErrConflict when the group already finalized a restaurant.
func (r *GroupRepo) UpsertVote(ctx context.Context, groupID, userID uint64, restaurantID string, snapshot *model.Restaurant) (*model.Group, error) {
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

    g, err := r.loadGroup(ctx, tx, groupID, true)
    if err != nil {
        return nil, err
    }
    if g.RestaurantSelected {
        return nil, ErrConflict
    }
    if !g.HasMember(userID) {
        return nil, ErrNotMember
    }

    now := time.Now().UTC()
    // A replaced vote counts as newly cast: cast_at refreshes, which feeds
    // the earliest-cast tie-break at expiry.
    if _, err := tx.ExecContext(ctx,
        `INSERT INTO group_votes (group_id, user_id, restaurant_id, cast_at)
         VALUES (?, ?, ?, ?)
         ON DUPLICATE KEY UPDATE restaurant_id = VALUES(restaurant_id), cast_at = VALUES(cast_at)`,
        groupID, userID, restaurantID, now.Format("2006-01-02 15:04:05")); err != nil {
        return nil, err
    }

    if snapshot != nil {
        if _, err := tx.ExecContext(ctx,
            `INSERT INTO group_restaurants (group_id, restaurant_id, name, location, url, phone_number, cuisine, price_range)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?)
             ON DUPLICATE KEY UPDATE name = VALUES(name), location = VALUES(location), url = VALUES(url),
                 phone_number = VALUES(phone_number), cuisine = VALUES(cuisine), price_range = VALUES(price_range)`,
            groupID, restaurantID, snapshot.Name, snapshot.Location, snapshot.URL,
            snapshot.PhoneNumber, snapshot.Cuisine, snapshot.PriceRange); err != nil {
            return nil, err
        }
    }

    updated, err := r.loadGroup(ctx, tx, groupID, false)
    if err != nil {
        return nil, err
    }
    if err := tx.Commit(); err != nil {
        return nil, err
    }
    committed = true
    return updated, nil
}

// RemoveMember removes a user from a group together with their vote and
// returns the updated group.  Returns ErrGroupNotFound or ErrNotMember.
func (r *GroupRepo) RemoveMember(ctx context.Context, groupID, userID uint64) (*model.Group, error) {
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

    if _, err := r.loadGroup(ctx, tx, groupID, true); err != nil {
        return nil, err
    }

    res, err := tx.ExecContext(ctx,
        `DELETE FROM group_members WHERE group_id = ? AND user_id = ?`, groupID, userID)
    if err != nil {
        return nil, err
    }
    if n, _ := res.RowsAffected(); n == 0 {
        return nil, ErrNotMember
    }
    if _, err := tx.ExecContext(ctx,
        `DELETE FROM group_votes WHERE group_id = ? AND user_id = ?`, groupID, userID); err != nil {
        return nil, err
    }

    updated, err := r.loadGroup(ctx, tx, groupID, false)
    if err != nil {
        return nil, err
    }
    if err := tx.Commit(); err != nil {
        return nil, err
    }
    committed = true
    return updated, nil
}

// FindExpiredVoting returns all VOTING groups past their deadline that have
// not selected a restaurant, fully loaded for the expiry sweep.
func (r *GroupRepo) FindExpiredVoting(ctx context.Context, now time.Time) ([]model.Group, error) {
    rows, err := r.db.QueryContext(ctx,
        "SELECT id FROM `groups` WHERE status = ? AND restaurant_selected = 0 AND completion_time < ?",
        model.GroupStatusVoting, now.UTC().Format("2006-01-02 15:04:05"))
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    ids := make([]uint64, 0)
    for rows.Next() {
        var id uint64
        if err := rows.Scan(&id); err != nil {
            return nil, err
        }
        ids = append(ids, id)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    groupList := make([]model.Group, 0, len(ids))
    for _, id := range ids {
        g, err := r.loadGroup(ctx, r.db, id, false)
        if err != nil {
            if errors.Is(err, ErrGroupNotFound) {
                continue
            }
            return nil, err
        }
        groupList = append(groupList, *g)
    }
    return groupList, nil
}

// Finalize selects the restaurant for a group as a compare-and-swap on
// restaurant_selected.  It reports whether this call won the swap; a false
// return means another path (majority vs sweep) already finalized.
func (r *GroupRepo) Finalize(ctx context.Context, groupID uint64, restaurant model.Restaurant) (bool, error) {
    res, err := r.db.ExecContext(ctx,
        "UPDATE `groups`"+
            ` SET restaurant_selected = 1, status = ?,
             restaurant_id = ?, restaurant_name = ?, restaurant_location = ?,
             restaurant_url = ?, restaurant_phone = ?, restaurant_cuisine = ?, restaurant_price_range = ?
         WHERE id = ? AND restaurant_selected = 0`,
        model.GroupStatusConfirmed,
        restaurant.RestaurantID, restaurant.Name, restaurant.Location,
        restaurant.URL, restaurant.PhoneNumber, restaurant.Cuisine, restaurant.PriceRange,
        groupID)
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return false, err
    }
    return n == 1, nil
}

// MarkStatus flips the group status from expected to next as a single
// compare-and-swap and reports whether the swap happened.
func (r *GroupRepo) MarkStatus(ctx context.Context, groupID uint64, expected, next string) (bool, error) {
    res, err := r.db.ExecContext(ctx,
        "UPDATE `groups` SET status = ? WHERE id = ? AND status = ?", next, groupID, expected)
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return false, err
    }
    return n == 1, nil
}

// execQueryer abstracts *sql.DB and *sql.Tx for the load helper.
type execQueryer interface {
    QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
    QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// loadGroup reads a full group.  When forUpdate is true the group row is
// locked for the duration of the surrounding transaction.
func (r *GroupRepo) loadGroup(ctx context.Context, q execQueryer, groupID uint64, forUpdate bool) (*model.Group, error) {
    query := `SELECT id, room_id, completion_time, status, restaurant_selected,
                     restaurant_id, restaurant_name, restaurant_location,
                     restaurant_url, restaurant_phone, restaurant_cuisine, restaurant_price_range,
                     created_at, updated_at
              FROM ` + "`groups`" + ` WHERE id = ?`
    if forUpdate {
        query += " FOR UPDATE"
    }
    var g model.Group
    var rid, rname, rloc, rurl, rphone, rcuisine, rprice sql.NullString
    err := q.QueryRowContext(ctx, query, groupID).Scan(
        &g.ID, &g.RoomID, &g.CompletionTime, &g.Status, &g.RestaurantSelected,
        &rid, &rname, &rloc, &rurl, &rphone, &rcuisine, &rprice,
        &g.CreatedAt, &g.UpdatedAt,
    )
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrGroupNotFound
    }
    if err != nil {
        return nil, err
    }
    if g.RestaurantSelected && rid.Valid {
        g.Restaurant = &model.Restaurant{
            RestaurantID: rid.String,
            Name:         rname.String,
            Location:     rloc.String,
            URL:          rurl.String,
            PhoneNumber:  rphone.String,
            Cuisine:      rcuisine.String,
            PriceRange:   rprice.String,
        }
    }

    mrows, err := q.QueryContext(ctx,
        `SELECT user_id FROM group_members WHERE group_id = ? ORDER BY user_id`, groupID)
    if err != nil {
        return nil, err
    }
    g.Members = make([]uint64, 0, 4)
    for mrows.Next() {
        var uid uint64
        if err := mrows.Scan(&uid); err != nil {
            mrows.Close()
            return nil, err
        }
        g.Members = append(g.Members, uid)
    }
    if err := mrows.Close(); err != nil {
        return nil, err
    }

    vrows, err := q.QueryContext(ctx,
        `SELECT user_id, restaurant_id, cast_at FROM group_votes WHERE group_id = ? ORDER BY cast_at, user_id`, groupID)
    if err != nil {
        return nil, err
    }
    g.Votes = make([]model.Vote, 0, len(g.Members))
    for vrows.Next() {
        var v model.Vote
        if err := vrows.Scan(&v.UserID, &v.RestaurantID, &v.CastAt); err != nil {
            vrows.Close()
            return nil, err
        }
        g.Votes = append(g.Votes, v)
    }
    if err := vrows.Close(); err != nil {
        return nil, err
    }

    srows, err := q.QueryContext(ctx,
        `SELECT restaurant_id, name, location, url, phone_number, cuisine, price_range
         FROM group_restaurants WHERE group_id = ?`, groupID)
    if err != nil {
        return nil, err
    }
    g.Snapshots = make(map[string]model.Restaurant)
    for srows.Next() {
        var snap model.Restaurant
        var loc, url, phone, cuisine, price sql.NullString
        if err := srows.Scan(&snap.RestaurantID, &snap.Name, &loc, &url, &phone, &cuisine, &price); err != nil {
            srows.Close()
            return nil, err
        }
        snap.Location, snap.URL, snap.PhoneNumber = loc.String, url.String, phone.String
        snap.Cuisine, snap.PriceRange = cuisine.String, price.String
        g.Snapshots[snap.RestaurantID] = snap
    }
    if err := srows.Close(); err != nil {
        return nil, err
    }

    return &g, nil
}
