package queue

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestTableName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"drip-messages-2025-01-15", "q_drip_messages_2025_01_15", false},
		{"test-drip-messages-2025-01-15", "q_test_drip_messages_2025_01_15", false},
		{"", "", true},
		{"Robert'); DROP TABLE leads;--", "", true},
		{"UPPER-CASE", "", true},
	}

	for _, tt := range tests {
		got, err := tableName(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("tableName(%q) should fail", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("tableName(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("tableName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPostgresQueueCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS q_drip_messages_2025_01_15`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	q := NewPostgresQueue(db)
	if err := q.Create(context.Background(), "drip-messages-2025-01-15"); err != nil {
		t.Errorf("Create() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresQueueSend(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	payload := []byte(`{"leadId":"x","messageNumber":1}`)
	mock.ExpectQuery(`INSERT INTO q_drip_messages_2025_01_15`).
		WithArgs(payload).
		WillReturnRows(sqlmock.NewRows([]string{"msg_id"}).AddRow(int64(7)))

	q := NewPostgresQueue(db)
	id, err := q.Send(context.Background(), "drip-messages-2025-01-15", payload)
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if id != 7 {
		t.Errorf("Send() id = %d, want 7", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresQueueRead(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	enqueued := time.Date(2025, time.January, 15, 8, 0, 0, 0, time.UTC)
	visible := enqueued.Add(30 * time.Second)
	mock.ExpectQuery(`FOR UPDATE SKIP LOCKED`).
		WithArgs(1, float64(30)).
		WillReturnRows(sqlmock.NewRows([]string{"msg_id", "read_ct", "enqueued_at", "vt", "message"}).
			AddRow(int64(3), 1, enqueued, visible, []byte(`{"messageNumber":2}`)))

	q := NewPostgresQueue(db)
	msgs, err := q.Read(context.Background(), "drip-messages-2025-01-15", 30*time.Second, 1)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("Read() returned %d messages, want 1", len(msgs))
	}
	if msgs[0].ID != 3 || msgs[0].ReadCount != 1 {
		t.Errorf("Read() message = %+v", msgs[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresQueueArchive(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	// Zero rows affected is still success: archive is idempotent.
	mock.ExpectExec(`DELETE FROM q_drip_messages_2025_01_15`).
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	q := NewPostgresQueue(db)
	if err := q.Archive(context.Background(), "drip-messages-2025-01-15", 9); err != nil {
		t.Errorf("Archive() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresQueueDrop(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`DROP TABLE IF EXISTS q_drip_messages_2025_01_15`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	q := NewPostgresQueue(db)
	if err := q.Drop(context.Background(), "drip-messages-2025-01-15"); err != nil {
		t.Errorf("Drop() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
