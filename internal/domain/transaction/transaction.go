package transaction

import (
	"time"

	"github.com/google/uuid"
)

// Kind names the operation a transaction performs
type Kind string

const (
	KindCreate Kind = "CREATE_TABLE"
	KindAlter  Kind = "ALTER_TABLE"
	KindDrop   Kind = "DROP_TABLE"
)

// Statement is one SQL statement issued inside a transaction
type Statement struct {
	SQL      string
	Duration time.Duration
}

// Transaction is the journal of a single engine operation.
// It does not own the SQL transaction; it records what happened inside it.
type Transaction struct {
	ID         string    // Unique transaction identifier (UUID)
	Kind       Kind      // What the operation does
	TableID    string    // Logical table id, empty until allocated for creates
	Active     bool      // Whether transaction is currently active
	StartTime  time.Time // When the transaction began
	Statements []Statement
}

// NewTransaction creates a new transaction with a unique ID
func NewTransaction(kind Kind, tableID string) *Transaction {
	return &Transaction{
		ID:         uuid.New().String(),
		Kind:       kind,
		TableID:    tableID,
		Active:     true,
		StartTime:  time.Now(),
		Statements: make([]Statement, 0),
	}
}

// Record appends an issued statement
func (tx *Transaction) Record(sql string, d time.Duration) {
	if tx == nil {
		return
	}
	tx.Statements = append(tx.Statements, Statement{SQL: sql, Duration: d})
}

// SQL returns the issued statements in order
func (tx *Transaction) SQL() []string {
	out := make([]string, len(tx.Statements))
	for i, s := range tx.Statements {
		out[i] = s.SQL
	}
	return out
}

// Elapsed returns time since the transaction began
func (tx *Transaction) Elapsed() time.Duration {
	return time.Since(tx.StartTime)
}

// Close marks the transaction as inactive
func (tx *Transaction) Close() {
	tx.Active = false
}
