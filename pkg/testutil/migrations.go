package testutil

// Migrations returns the full pharmacy schema in apply order.
func Migrations() []string {
	return []string{
		medicineCacheMigration,
		inventoryMigration,
		salesMigration,
		intakeMigration,
	}
}

const medicineCacheMigration = `
	CREATE TABLE IF NOT EXISTS medicine_cache (
		id UUID PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		generic_name VARCHAR(255),
		manufacturer VARCHAR(255),
		category VARCHAR(100),
		unit VARCHAR(50),
		default_price DECIMAL(10,2),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
`

const inventoryMigration = `
	CREATE TABLE IF NOT EXISTS inventory_batches (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		owner_id UUID NOT NULL,
		medicine_id UUID NOT NULL,
		medicine_name VARCHAR(255) NOT NULL,
		batch_number VARCHAR(100) NOT NULL,
		expiry_date DATE NOT NULL,
		manufacture_date DATE,
		received_quantity INT NOT NULL DEFAULT 0,
		sold_quantity INT NOT NULL DEFAULT 0,
		damaged_quantity INT NOT NULL DEFAULT 0,
		purchase_price DECIMAL(10,2) NOT NULL DEFAULT 0,
		selling_price DECIMAL(10,2) NOT NULL DEFAULT 0,
		mrp DECIMAL(10,2),
		reorder_level INT NOT NULL DEFAULT 10,
		expiry_alert_days INT NOT NULL DEFAULT 30,
		status VARCHAR(20) NOT NULL DEFAULT 'active',
		supplier VARCHAR(255),
		location VARCHAR(100),
		is_active BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT uq_batches_owner_medicine_batch_number UNIQUE (owner_id, medicine_id, batch_number),
		CONSTRAINT batches_counters_consistent CHECK (
			received_quantity >= 0 AND sold_quantity >= 0 AND damaged_quantity >= 0
			AND received_quantity >= sold_quantity + damaged_quantity
		)
	);

	CREATE INDEX IF NOT EXISTS idx_batches_owner_medicine ON inventory_batches(owner_id, medicine_id);
	CREATE INDEX IF NOT EXISTS idx_batches_owner_status ON inventory_batches(owner_id, status);
	CREATE INDEX IF NOT EXISTS idx_batches_owner_expiry ON inventory_batches(owner_id, expiry_date);

	CREATE TABLE IF NOT EXISTS stock_transactions (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		owner_id UUID NOT NULL,
		batch_id UUID NOT NULL REFERENCES inventory_batches(id),
		medicine_id UUID NOT NULL,
		transaction_type VARCHAR(20) NOT NULL,
		quantity_delta INT NOT NULL,
		previous_quantity INT NOT NULL,
		new_quantity INT NOT NULL,
		reason TEXT,
		reference_number VARCHAR(64),
		sale_id UUID,
		performed_by VARCHAR(64),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_owner_batch ON stock_transactions(owner_id, batch_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_transactions_owner_created ON stock_transactions(owner_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_transactions_sale ON stock_transactions(sale_id) WHERE sale_id IS NOT NULL;
`

const salesMigration = `
	CREATE TABLE IF NOT EXISTS sales (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		owner_id UUID NOT NULL,
		bill_number VARCHAR(32) NOT NULL,
		customer_name VARCHAR(255),
		customer_phone VARCHAR(50),
		customer_email VARCHAR(255),
		doctor_name VARCHAR(255),
		subtotal DECIMAL(10,2) NOT NULL DEFAULT 0,
		discount_amount DECIMAL(10,2) NOT NULL DEFAULT 0,
		tax_amount DECIMAL(10,2) NOT NULL DEFAULT 0,
		shipping_charge DECIMAL(10,2) NOT NULL DEFAULT 0,
		other_charge DECIMAL(10,2) NOT NULL DEFAULT 0,
		total DECIMAL(10,2) NOT NULL DEFAULT 0,
		amount_paid DECIMAL(10,2) NOT NULL DEFAULT 0,
		balance_due DECIMAL(10,2) NOT NULL DEFAULT 0,
		payment_method VARCHAR(20) NOT NULL DEFAULT 'cash',
		payment_status VARCHAR(20) NOT NULL DEFAULT 'pending',
		status VARCHAR(20) NOT NULL DEFAULT 'completed',
		notes TEXT,
		sold_by VARCHAR(64),
		sale_date TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT uq_sales_owner_bill_number UNIQUE (owner_id, bill_number)
	);

	CREATE INDEX IF NOT EXISTS idx_sales_owner_date ON sales(owner_id, sale_date DESC);
	CREATE INDEX IF NOT EXISTS idx_sales_owner_status ON sales(owner_id, status);

	CREATE TABLE IF NOT EXISTS sale_items (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		sale_id UUID NOT NULL REFERENCES sales(id) ON DELETE CASCADE,
		batch_id UUID NOT NULL,
		medicine_id UUID NOT NULL,
		medicine_name VARCHAR(255) NOT NULL,
		batch_number VARCHAR(100),
		expiry_date DATE,
		quantity INT NOT NULL,
		unit_price DECIMAL(10,2) NOT NULL DEFAULT 0,
		discount_percent DECIMAL(5,2) NOT NULL DEFAULT 0,
		tax_percent DECIMAL(5,2) NOT NULL DEFAULT 0,
		subtotal DECIMAL(10,2) NOT NULL DEFAULT 0,
		discount_amount DECIMAL(10,2) NOT NULL DEFAULT 0,
		tax_amount DECIMAL(10,2) NOT NULL DEFAULT 0,
		line_total DECIMAL(10,2) NOT NULL DEFAULT 0,
		quantity_returned INT NOT NULL DEFAULT 0,
		CONSTRAINT sale_items_quantity_positive CHECK (quantity > 0),
		CONSTRAINT sale_items_returned_bounded CHECK (quantity_returned >= 0 AND quantity_returned <= quantity)
	);

	CREATE INDEX IF NOT EXISTS idx_sale_items_sale ON sale_items(sale_id);
	CREATE INDEX IF NOT EXISTS idx_sale_items_batch ON sale_items(batch_id);

	CREATE TABLE IF NOT EXISTS sale_returns (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		owner_id UUID NOT NULL,
		return_number VARCHAR(32) NOT NULL,
		sale_id UUID NOT NULL REFERENCES sales(id),
		bill_number VARCHAR(32) NOT NULL,
		reason TEXT,
		refund_amount DECIMAL(10,2) NOT NULL DEFAULT 0,
		refund_method VARCHAR(20) NOT NULL DEFAULT 'cash',
		full_return BOOLEAN NOT NULL DEFAULT false,
		processed_by VARCHAR(64),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT uq_returns_owner_return_number UNIQUE (owner_id, return_number)
	);

	CREATE INDEX IF NOT EXISTS idx_returns_owner_sale ON sale_returns(owner_id, sale_id);

	CREATE TABLE IF NOT EXISTS sale_return_items (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		return_id UUID NOT NULL REFERENCES sale_returns(id) ON DELETE CASCADE,
		sale_item_id UUID NOT NULL REFERENCES sale_items(id),
		batch_id UUID NOT NULL,
		medicine_id UUID NOT NULL,
		medicine_name VARCHAR(255) NOT NULL,
		quantity INT NOT NULL,
		unit_price DECIMAL(10,2) NOT NULL DEFAULT 0,
		refund_amount DECIMAL(10,2) NOT NULL DEFAULT 0,
		CONSTRAINT return_items_quantity_positive CHECK (quantity > 0)
	);

	CREATE TABLE IF NOT EXISTS bill_sequences (
		owner_id UUID NOT NULL,
		kind VARCHAR(10) NOT NULL,
		period VARCHAR(6) NOT NULL,
		last_value INT NOT NULL DEFAULT 0,
		PRIMARY KEY (owner_id, kind, period)
	);
`

const intakeMigration = `
	CREATE TABLE IF NOT EXISTS purchase_orders (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		owner_id UUID NOT NULL,
		order_number VARCHAR(32) NOT NULL,
		supplier VARCHAR(255) NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'draft',
		notes TEXT,
		expected_date DATE,
		received_at TIMESTAMPTZ,
		posted_at TIMESTAMPTZ,
		created_by VARCHAR(64),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT uq_orders_owner_order_number UNIQUE (owner_id, order_number)
	);

	CREATE INDEX IF NOT EXISTS idx_orders_owner_status ON purchase_orders(owner_id, status);

	CREATE TABLE IF NOT EXISTS purchase_order_lines (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		order_id UUID NOT NULL REFERENCES purchase_orders(id) ON DELETE CASCADE,
		medicine_id UUID NOT NULL,
		medicine_name VARCHAR(255) NOT NULL,
		batch_number VARCHAR(100) NOT NULL,
		expiry_date DATE NOT NULL,
		quantity_ordered INT NOT NULL,
		quantity_received INT NOT NULL DEFAULT 0,
		unit_price DECIMAL(10,2) NOT NULL DEFAULT 0,
		cost_price DECIMAL(10,2),
		verified BOOLEAN NOT NULL DEFAULT false,
		batch_id UUID,
		CONSTRAINT order_lines_quantity_positive CHECK (quantity_ordered > 0)
	);

	CREATE INDEX IF NOT EXISTS idx_order_lines_order ON purchase_order_lines(order_id);
`
