package journal

const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	created DATETIME NOT NULL,
	strategy TEXT NOT NULL,
	symbol TEXT NOT NULL,
	params TEXT NOT NULL,
	start_time DATETIME NOT NULL,
	end_time DATETIME NOT NULL,
	bars INTEGER NOT NULL,
	starting_cash REAL NOT NULL,
	final_equity REAL NOT NULL,
	return_pct REAL NOT NULL,
	max_dd_pct REAL NOT NULL,
	sharpe REAL NOT NULL,
	trades INTEGER NOT NULL,
	win_rate_pct REAL NOT NULL,
	profit_factor REAL NOT NULL,
	commission REAL NOT NULL,
	status TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	run_id TEXT NOT NULL,
	trade_id INTEGER NOT NULL,
	side TEXT NOT NULL,
	size REAL NOT NULL,
	entry_time DATETIME NOT NULL,
	exit_time DATETIME NOT NULL,
	entry_price REAL NOT NULL,
	exit_price REAL NOT NULL,
	pnl REAL NOT NULL,
	return_pct REAL NOT NULL,
	commission REAL NOT NULL,
	tag TEXT NOT NULL,
	exit_reason TEXT NOT NULL,
	PRIMARY KEY (run_id, trade_id)
);

CREATE TABLE IF NOT EXISTS equity (
	run_id TEXT NOT NULL,
	bar INTEGER NOT NULL,
	time DATETIME NOT NULL,
	cash REAL NOT NULL,
	equity REAL NOT NULL,
	peak REAL NOT NULL,
	position REAL NOT NULL,
	PRIMARY KEY (run_id, bar)
);

CREATE INDEX IF NOT EXISTS idx_equity_time ON equity(run_id, time);
`
