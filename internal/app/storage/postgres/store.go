package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hangarlink/market_layer/internal/app/domain/buyorder"
	"github.com/hangarlink/market_layer/internal/app/domain/contact"
	"github.com/hangarlink/market_layer/internal/app/domain/listing"
	"github.com/hangarlink/market_layer/internal/app/domain/pricing"
	"github.com/hangarlink/market_layer/internal/app/domain/purchase"
	"github.com/hangarlink/market_layer/internal/app/domain/stockpile"
	"github.com/hangarlink/market_layer/internal/app/domain/user"
	"github.com/hangarlink/market_layer/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.ContactStore = (*Store)(nil)
var _ storage.PermissionStore = (*Store)(nil)
var _ storage.ListingStore = (*Store)(nil)
var _ storage.PurchaseStore = (*Store)(nil)
var _ storage.BuyOrderStore = (*Store)(nil)
var _ storage.StockpileStore = (*Store)(nil)
var _ storage.PriceStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// --- UserStore --------------------------------------------------------------

func (s *Store) UpsertUser(ctx context.Context, u user.User) (user.User, error) {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO market_users (id, name, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
		RETURNING created_at
	`, u.ID, u.Name, u.CreatedAt).Scan(&u.CreatedAt)
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (user.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, created_at FROM market_users WHERE id = $1
	`, id)

	var u user.User
	if err := row.Scan(&u.ID, &u.Name, &u.CreatedAt); err != nil {
		return user.User{}, mapNoRows(err, fmt.Sprintf("user %d", id))
	}
	return u, nil
}

func (s *Store) GetUserByName(ctx context.Context, name string) (user.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, created_at FROM market_users WHERE LOWER(name) = LOWER($1)
	`, name)

	var u user.User
	if err := row.Scan(&u.ID, &u.Name, &u.CreatedAt); err != nil {
		return user.User{}, mapNoRows(err, fmt.Sprintf("user %q", name))
	}
	return u, nil
}

// --- ContactStore -----------------------------------------------------------

const contactColumns = `id, requester_id, recipient_id, requester_name, recipient_name, status, requested_at, responded_at`

func (s *Store) CreateContact(ctx context.Context, c contact.Contact) (contact.Contact, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.RequestedAt.IsZero() {
		c.RequestedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contacts (`+contactColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID, c.RequesterID, c.RecipientID, c.RequesterName, c.RecipientName, c.Status, c.RequestedAt, toNullTime(c.RespondedAt))
	if err != nil {
		return contact.Contact{}, err
	}
	return c, nil
}

func (s *Store) UpdateContact(ctx context.Context, c contact.Contact) (contact.Contact, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE contacts
		SET status = $2, requested_at = $3, responded_at = $4
		WHERE id = $1
	`, c.ID, c.Status, c.RequestedAt, toNullTime(c.RespondedAt))
	if err != nil {
		return contact.Contact{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return contact.Contact{}, fmt.Errorf("contact %s: %w", c.ID, storage.ErrNotFound)
	}
	return c, nil
}

func (s *Store) GetContact(ctx context.Context, id string) (contact.Contact, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+contactColumns+` FROM contacts WHERE id = $1
	`, id)
	c, err := scanContact(row)
	if err != nil {
		return contact.Contact{}, mapNoRows(err, fmt.Sprintf("contact %s", id))
	}
	return c, nil
}

func (s *Store) FindContactBetween(ctx context.Context, a, b int64) (contact.Contact, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+contactColumns+` FROM contacts
		WHERE (requester_id = $1 AND recipient_id = $2)
		   OR (requester_id = $2 AND recipient_id = $1)
	`, a, b)
	c, err := scanContact(row)
	if err != nil {
		return contact.Contact{}, mapNoRows(err, fmt.Sprintf("contact between %d and %d", a, b))
	}
	return c, nil
}

func (s *Store) ListContactsForUser(ctx context.Context, userID int64) ([]contact.Contact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+contactColumns+` FROM contacts
		WHERE requester_id = $1 OR recipient_id = $1
		ORDER BY requested_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]contact.Contact, 0)
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) DeleteContact(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("contact %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanContact(row rowScanner) (contact.Contact, error) {
	var (
		c           contact.Contact
		respondedAt sql.NullTime
	)
	if err := row.Scan(&c.ID, &c.RequesterID, &c.RecipientID, &c.RequesterName, &c.RecipientName, &c.Status, &c.RequestedAt, &respondedAt); err != nil {
		return contact.Contact{}, err
	}
	c.RespondedAt = fromNullTime(respondedAt)
	return c, nil
}

// --- PermissionStore --------------------------------------------------------

func (s *Store) UpsertPermission(ctx context.Context, p contact.Permission) (contact.Permission, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO contact_permissions (id, contact_id, grantor_id, grantee_id, service_type, can_access)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (grantor_id, grantee_id, service_type)
		DO UPDATE SET can_access = EXCLUDED.can_access, contact_id = EXCLUDED.contact_id
		RETURNING id
	`, p.ID, p.ContactID, p.GrantorID, p.GranteeID, p.ServiceType, p.CanAccess).Scan(&p.ID)
	if err != nil {
		return contact.Permission{}, err
	}
	return p, nil
}

func (s *Store) InitContactPermissions(ctx context.Context, c contact.Contact, serviceTypes []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	pairs := [][2]int64{
		{c.RequesterID, c.RecipientID},
		{c.RecipientID, c.RequesterID},
	}
	for _, pair := range pairs {
		for _, svc := range serviceTypes {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO contact_permissions (id, contact_id, grantor_id, grantee_id, service_type, can_access)
				VALUES ($1, $2, $3, $4, $5, FALSE)
				ON CONFLICT (grantor_id, grantee_id, service_type) DO NOTHING
			`, uuid.NewString(), c.ID, pair[0], pair[1], svc)
			if err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

func (s *Store) GetPermission(ctx context.Context, grantorID, granteeID int64, serviceType string) (contact.Permission, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, contact_id, grantor_id, grantee_id, service_type, can_access
		FROM contact_permissions
		WHERE grantor_id = $1 AND grantee_id = $2 AND service_type = $3
	`, grantorID, granteeID, serviceType)

	var p contact.Permission
	if err := row.Scan(&p.ID, &p.ContactID, &p.GrantorID, &p.GranteeID, &p.ServiceType, &p.CanAccess); err != nil {
		return contact.Permission{}, mapNoRows(err, fmt.Sprintf("permission %d->%d %s", grantorID, granteeID, serviceType))
	}
	return p, nil
}

func (s *Store) ListPermissionsForContact(ctx context.Context, contactID string) ([]contact.Permission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, contact_id, grantor_id, grantee_id, service_type, can_access
		FROM contact_permissions
		WHERE contact_id = $1
		ORDER BY grantor_id, service_type
	`, contactID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]contact.Permission, 0)
	for rows.Next() {
		var p contact.Permission
		if err := rows.Scan(&p.ID, &p.ContactID, &p.GrantorID, &p.GranteeID, &p.ServiceType, &p.CanAccess); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) ListGrantors(ctx context.Context, granteeID int64, serviceType string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT grantor_id FROM contact_permissions
		WHERE grantee_id = $1 AND service_type = $2 AND can_access = TRUE
		ORDER BY grantor_id
	`, granteeID, serviceType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *Store) DeletePermissionsForContact(ctx context.Context, contactID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM contact_permissions WHERE contact_id = $1`, contactID)
	return err
}

// --- ListingStore -----------------------------------------------------------

const listingColumns = `id, seller_id, seller_name, item_type_id, item_type_name, location_id, location_name, quantity_available, price_per_unit, notes, is_active, created_at, updated_at`

func (s *Store) UpsertListing(ctx context.Context, l listing.Listing) (listing.Listing, error) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now
	l.IsActive = true

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO listings (`+listingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, TRUE, $11, $11)
		ON CONFLICT (seller_id, item_type_id, location_id)
		DO UPDATE SET
			seller_name = EXCLUDED.seller_name,
			item_type_name = EXCLUDED.item_type_name,
			location_name = EXCLUDED.location_name,
			quantity_available = EXCLUDED.quantity_available,
			price_per_unit = EXCLUDED.price_per_unit,
			notes = EXCLUDED.notes,
			is_active = TRUE,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`, l.ID, l.SellerID, l.SellerName, l.ItemTypeID, l.ItemTypeName, l.LocationID, l.LocationName,
		l.QuantityAvailable, l.PricePerUnit, toNullString(l.Notes), now).Scan(&l.ID, &l.CreatedAt)
	if err != nil {
		return listing.Listing{}, err
	}
	return l, nil
}

func (s *Store) GetListing(ctx context.Context, id string) (listing.Listing, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+listingColumns+` FROM listings WHERE id = $1
	`, id)
	l, err := scanListing(row)
	if err != nil {
		return listing.Listing{}, mapNoRows(err, fmt.Sprintf("listing %s", id))
	}
	return l, nil
}

func (s *Store) FindListingByKey(ctx context.Context, sellerID, itemTypeID, locationID int64) (listing.Listing, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+listingColumns+` FROM listings
		WHERE seller_id = $1 AND item_type_id = $2 AND location_id = $3
	`, sellerID, itemTypeID, locationID)
	l, err := scanListing(row)
	if err != nil {
		return listing.Listing{}, mapNoRows(err, fmt.Sprintf("listing for seller %d type %d at %d", sellerID, itemTypeID, locationID))
	}
	return l, nil
}

func (s *Store) DeactivateListing(ctx context.Context, id string, sellerID int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE listings SET is_active = FALSE, updated_at = $3
		WHERE id = $1 AND seller_id = $2
	`, id, sellerID, time.Now().UTC())
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("listing %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) ListListingsBySeller(ctx context.Context, sellerID int64) ([]listing.Listing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+listingColumns+` FROM listings
		WHERE seller_id = $1 AND is_active = TRUE
		ORDER BY updated_at DESC
	`, sellerID)
	if err != nil {
		return nil, err
	}
	return collectListings(rows)
}

func (s *Store) ListBrowsableListings(ctx context.Context, buyerID int64, sellerIDs []int64) ([]listing.Listing, error) {
	if len(sellerIDs) == 0 {
		return []listing.Listing{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+listingColumns+` FROM listings
		WHERE seller_id = ANY($2)
		  AND seller_id <> $1
		  AND is_active = TRUE
		  AND quantity_available > 0
		ORDER BY updated_at DESC
	`, buyerID, pq.Array(sellerIDs))
	if err != nil {
		return nil, err
	}
	return collectListings(rows)
}

func (s *Store) AdjustListingQuantity(ctx context.Context, id string, delta int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE listings
		SET quantity_available = quantity_available + $2, updated_at = $3
		WHERE id = $1 AND quantity_available + $2 >= 0
	`, id, delta, time.Now().UTC())
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows > 0 {
		return nil
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT TRUE FROM listings WHERE id = $1`, id).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("listing %s: %w", id, storage.ErrNotFound)
		}
		return err
	}
	return fmt.Errorf("listing %s: %w", id, storage.ErrInsufficientQuantity)
}

func scanListing(row rowScanner) (listing.Listing, error) {
	var (
		l     listing.Listing
		notes sql.NullString
	)
	if err := row.Scan(&l.ID, &l.SellerID, &l.SellerName, &l.ItemTypeID, &l.ItemTypeName, &l.LocationID, &l.LocationName,
		&l.QuantityAvailable, &l.PricePerUnit, &notes, &l.IsActive, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return listing.Listing{}, err
	}
	l.Notes = fromNullString(notes)
	return l, nil
}

func collectListings(rows *sql.Rows) ([]listing.Listing, error) {
	defer rows.Close()

	out := make([]listing.Listing, 0)
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// --- PurchaseStore ----------------------------------------------------------

const purchaseColumns = `id, listing_id, buyer_id, buyer_name, seller_id, seller_name, item_type_id, item_type_name, location_id, location_name, quantity, price_per_unit, total_price, contract_key, status, purchased_at, updated_at`

func (s *Store) CreatePurchase(ctx context.Context, p purchase.Purchase) (purchase.Purchase, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if p.PurchasedAt.IsZero() {
		p.PurchasedAt = now
	}
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO purchases (`+purchaseColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, p.ID, p.ListingID, p.BuyerID, p.BuyerName, p.SellerID, p.SellerName, p.ItemTypeID, p.ItemTypeName,
		p.LocationID, p.LocationName, p.Quantity, p.PricePerUnit, p.TotalPrice, toNullString(p.ContractKey),
		p.Status, p.PurchasedAt, p.UpdatedAt)
	if err != nil {
		return purchase.Purchase{}, err
	}
	return p, nil
}

func (s *Store) UpdatePurchase(ctx context.Context, p purchase.Purchase) (purchase.Purchase, error) {
	p.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE purchases
		SET status = $2, contract_key = $3, updated_at = $4
		WHERE id = $1
	`, p.ID, p.Status, toNullString(p.ContractKey), p.UpdatedAt)
	if err != nil {
		return purchase.Purchase{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return purchase.Purchase{}, fmt.Errorf("purchase %s: %w", p.ID, storage.ErrNotFound)
	}
	return p, nil
}

func (s *Store) GetPurchase(ctx context.Context, id string) (purchase.Purchase, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+purchaseColumns+` FROM purchases WHERE id = $1
	`, id)
	p, err := scanPurchase(row)
	if err != nil {
		return purchase.Purchase{}, mapNoRows(err, fmt.Sprintf("purchase %s", id))
	}
	return p, nil
}

func (s *Store) ListPurchasesByBuyer(ctx context.Context, buyerID int64) ([]purchase.Purchase, error) {
	return s.queryPurchases(ctx, `
		SELECT `+purchaseColumns+` FROM purchases
		WHERE buyer_id = $1 ORDER BY purchased_at DESC
	`, buyerID)
}

func (s *Store) ListPurchasesBySeller(ctx context.Context, sellerID int64) ([]purchase.Purchase, error) {
	return s.queryPurchases(ctx, `
		SELECT `+purchaseColumns+` FROM purchases
		WHERE seller_id = $1 ORDER BY purchased_at DESC
	`, sellerID)
}

func (s *Store) ListPendingPurchasesBySeller(ctx context.Context, sellerID int64) ([]purchase.Purchase, error) {
	return s.queryPurchases(ctx, `
		SELECT `+purchaseColumns+` FROM purchases
		WHERE seller_id = $1 AND status = $2
		ORDER BY contract_key NULLS LAST, purchased_at DESC
	`, sellerID, purchase.StatusPending)
}

func (s *Store) SumOpenPurchaseQuantity(ctx context.Context, listingID string) (int64, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(quantity), 0) FROM purchases
		WHERE listing_id = $1 AND status IN ($2, $3)
	`, listingID, purchase.StatusPending, purchase.StatusContractCreated)

	var total int64
	if err := row.Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) FindOpenContractKey(ctx context.Context, buyerID, locationID int64) (string, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT contract_key FROM purchases
		WHERE buyer_id = $1 AND location_id = $2
		  AND status IN ($3, $4)
		  AND contract_key IS NOT NULL
		ORDER BY purchased_at DESC
		LIMIT 1
	`, buyerID, locationID, purchase.StatusPending, purchase.StatusContractCreated)

	var key string
	if err := row.Scan(&key); err != nil {
		return "", mapNoRows(err, fmt.Sprintf("open contract for buyer %d at %d", buyerID, locationID))
	}
	return key, nil
}

func (s *Store) ListPurchasesByContractKey(ctx context.Context, key string) ([]purchase.Purchase, error) {
	return s.queryPurchases(ctx, `
		SELECT `+purchaseColumns+` FROM purchases
		WHERE contract_key = $1 ORDER BY purchased_at DESC
	`, key)
}

func (s *Store) queryPurchases(ctx context.Context, query string, args ...interface{}) ([]purchase.Purchase, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]purchase.Purchase, 0)
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPurchase(row rowScanner) (purchase.Purchase, error) {
	var (
		p           purchase.Purchase
		contractKey sql.NullString
	)
	if err := row.Scan(&p.ID, &p.ListingID, &p.BuyerID, &p.BuyerName, &p.SellerID, &p.SellerName,
		&p.ItemTypeID, &p.ItemTypeName, &p.LocationID, &p.LocationName, &p.Quantity, &p.PricePerUnit,
		&p.TotalPrice, &contractKey, &p.Status, &p.PurchasedAt, &p.UpdatedAt); err != nil {
		return purchase.Purchase{}, err
	}
	p.ContractKey = fromNullString(contractKey)
	return p, nil
}

// --- BuyOrderStore ----------------------------------------------------------

const buyOrderColumns = `id, buyer_id, buyer_name, item_type_id, item_type_name, location_id, location_name, quantity, max_price_per_unit, notes, is_active, created_at, updated_at`

func (s *Store) UpsertBuyOrder(ctx context.Context, o buyorder.BuyOrder) (buyorder.BuyOrder, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now
	o.IsActive = true

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO buy_orders (`+buyOrderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, TRUE, $11, $11)
		ON CONFLICT (buyer_id, item_type_id, location_id)
		DO UPDATE SET
			buyer_name = EXCLUDED.buyer_name,
			item_type_name = EXCLUDED.item_type_name,
			location_name = EXCLUDED.location_name,
			quantity = EXCLUDED.quantity,
			max_price_per_unit = EXCLUDED.max_price_per_unit,
			notes = EXCLUDED.notes,
			is_active = TRUE,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`, o.ID, o.BuyerID, o.BuyerName, o.ItemTypeID, o.ItemTypeName, o.LocationID, o.LocationName,
		o.Quantity, o.MaxPricePerUnit, toNullString(o.Notes), now).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return buyorder.BuyOrder{}, err
	}
	return o, nil
}

func (s *Store) GetBuyOrder(ctx context.Context, id string) (buyorder.BuyOrder, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+buyOrderColumns+` FROM buy_orders WHERE id = $1
	`, id)
	o, err := scanBuyOrder(row)
	if err != nil {
		return buyorder.BuyOrder{}, mapNoRows(err, fmt.Sprintf("buy order %s", id))
	}
	return o, nil
}

func (s *Store) DeactivateBuyOrder(ctx context.Context, id string, buyerID int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE buy_orders SET is_active = FALSE, updated_at = $3
		WHERE id = $1 AND buyer_id = $2
	`, id, buyerID, time.Now().UTC())
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("buy order %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) ListBuyOrdersByBuyer(ctx context.Context, buyerID int64) ([]buyorder.BuyOrder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+buyOrderColumns+` FROM buy_orders
		WHERE buyer_id = $1 AND is_active = TRUE
		ORDER BY updated_at DESC
	`, buyerID)
	if err != nil {
		return nil, err
	}
	return collectBuyOrders(rows)
}

func (s *Store) ListOpenBuyOrders(ctx context.Context, buyerIDs []int64) ([]buyorder.BuyOrder, error) {
	if len(buyerIDs) == 0 {
		return []buyorder.BuyOrder{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+buyOrderColumns+` FROM buy_orders
		WHERE buyer_id = ANY($1) AND is_active = TRUE AND quantity > 0
		ORDER BY updated_at DESC
	`, pq.Array(buyerIDs))
	if err != nil {
		return nil, err
	}
	return collectBuyOrders(rows)
}

func scanBuyOrder(row rowScanner) (buyorder.BuyOrder, error) {
	var (
		o     buyorder.BuyOrder
		notes sql.NullString
	)
	if err := row.Scan(&o.ID, &o.BuyerID, &o.BuyerName, &o.ItemTypeID, &o.ItemTypeName, &o.LocationID, &o.LocationName,
		&o.Quantity, &o.MaxPricePerUnit, &notes, &o.IsActive, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return buyorder.BuyOrder{}, err
	}
	o.Notes = fromNullString(notes)
	return o, nil
}

func collectBuyOrders(rows *sql.Rows) ([]buyorder.BuyOrder, error) {
	defer rows.Close()

	out := make([]buyorder.BuyOrder, 0)
	for rows.Next() {
		o, err := scanBuyOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// --- StockpileStore ---------------------------------------------------------

func (s *Store) UpsertMarker(ctx context.Context, m stockpile.Marker) (stockpile.Marker, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE stockpile_markers
		SET item_type_name = $5, desired_quantity = $6
		WHERE owner_id = $1 AND location_id = $2 AND item_type_id = $3
		  AND container_id IS NOT DISTINCT FROM $4
		  AND division_number IS NOT DISTINCT FROM $7
	`, m.OwnerID, m.LocationID, m.ItemTypeID, toNullInt64(m.ContainerID), m.ItemTypeName, m.DesiredQuantity, toNullInt(m.DivisionNumber))
	if err != nil {
		return stockpile.Marker{}, err
	}
	if rows, _ := result.RowsAffected(); rows > 0 {
		row := s.db.QueryRowContext(ctx, `
			SELECT id FROM stockpile_markers
			WHERE owner_id = $1 AND location_id = $2 AND item_type_id = $3
			  AND container_id IS NOT DISTINCT FROM $4
			  AND division_number IS NOT DISTINCT FROM $5
		`, m.OwnerID, m.LocationID, m.ItemTypeID, toNullInt64(m.ContainerID), toNullInt(m.DivisionNumber))
		if err := row.Scan(&m.ID); err != nil {
			return stockpile.Marker{}, err
		}
		return m, nil
	}

	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO stockpile_markers (id, owner_id, location_id, container_id, division_number, item_type_id, item_type_name, desired_quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, m.ID, m.OwnerID, m.LocationID, toNullInt64(m.ContainerID), toNullInt(m.DivisionNumber), m.ItemTypeID, m.ItemTypeName, m.DesiredQuantity)
	if err != nil {
		return stockpile.Marker{}, err
	}
	return m, nil
}

func (s *Store) DeleteMarker(ctx context.Context, id string, ownerID int64) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM stockpile_markers WHERE id = $1 AND owner_id = $2
	`, id, ownerID)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("stockpile marker %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) ListMarkers(ctx context.Context, ownerID int64) ([]stockpile.Marker, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, location_id, container_id, division_number, item_type_id, item_type_name, desired_quantity
		FROM stockpile_markers
		WHERE owner_id = $1
		ORDER BY location_id, item_type_id
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]stockpile.Marker, 0)
	for rows.Next() {
		var (
			m           stockpile.Marker
			containerID sql.NullInt64
			division    sql.NullInt64
		)
		if err := rows.Scan(&m.ID, &m.OwnerID, &m.LocationID, &containerID, &division, &m.ItemTypeID, &m.ItemTypeName, &m.DesiredQuantity); err != nil {
			return nil, err
		}
		m.ContainerID = fromNullInt64(containerID)
		m.DivisionNumber = fromNullInt(division)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) ReplaceAssets(ctx context.Context, ownerID int64, assets []stockpile.Asset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM assets WHERE owner_id = $1`, ownerID); err != nil {
		return err
	}
	for _, a := range assets {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO assets (owner_id, location_id, container_id, division_number, item_type_id, quantity)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, ownerID, a.LocationID, toNullInt64(a.ContainerID), toNullInt(a.DivisionNumber), a.ItemTypeID, a.Quantity)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) ListAssets(ctx context.Context, ownerID int64) ([]stockpile.Asset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT owner_id, location_id, container_id, division_number, item_type_id, quantity
		FROM assets
		WHERE owner_id = $1
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]stockpile.Asset, 0)
	for rows.Next() {
		var (
			a           stockpile.Asset
			containerID sql.NullInt64
			division    sql.NullInt64
		)
		if err := rows.Scan(&a.OwnerID, &a.LocationID, &containerID, &division, &a.ItemTypeID, &a.Quantity); err != nil {
			return nil, err
		}
		a.ContainerID = fromNullInt64(containerID)
		a.DivisionNumber = fromNullInt(division)
		out = append(out, a)
	}
	return out, rows.Err()
}

// --- PriceStore -------------------------------------------------------------

func (s *Store) UpsertPrice(ctx context.Context, p pricing.ItemPrice) (pricing.ItemPrice, error) {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO item_prices (item_type_id, buy_price, sell_price, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (item_type_id)
		DO UPDATE SET buy_price = EXCLUDED.buy_price, sell_price = EXCLUDED.sell_price, updated_at = EXCLUDED.updated_at
	`, p.ItemTypeID, p.BuyPrice, p.SellPrice, p.UpdatedAt)
	if err != nil {
		return pricing.ItemPrice{}, err
	}
	return p, nil
}

func (s *Store) GetPrice(ctx context.Context, itemTypeID int64) (pricing.ItemPrice, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT item_type_id, buy_price, sell_price, updated_at FROM item_prices WHERE item_type_id = $1
	`, itemTypeID)

	var p pricing.ItemPrice
	if err := row.Scan(&p.ItemTypeID, &p.BuyPrice, &p.SellPrice, &p.UpdatedAt); err != nil {
		return pricing.ItemPrice{}, mapNoRows(err, fmt.Sprintf("price for type %d", itemTypeID))
	}
	return p, nil
}

func (s *Store) ListPrices(ctx context.Context, itemTypeIDs []int64) ([]pricing.ItemPrice, error) {
	query := `SELECT item_type_id, buy_price, sell_price, updated_at FROM item_prices ORDER BY item_type_id`
	args := []interface{}{}
	if len(itemTypeIDs) > 0 {
		query = `SELECT item_type_id, buy_price, sell_price, updated_at FROM item_prices WHERE item_type_id = ANY($1) ORDER BY item_type_id`
		args = append(args, pq.Array(itemTypeIDs))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]pricing.ItemPrice, 0)
	for rows.Next() {
		var p pricing.ItemPrice
		if err := rows.Scan(&p.ItemTypeID, &p.BuyPrice, &p.SellPrice, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// --- helpers ----------------------------------------------------------------

func mapNoRows(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, storage.ErrNotFound)
	}
	return err
}

func toNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func fromNullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func toNullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func fromNullInt64(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func toNullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func fromNullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
