package postgres

import "testing"

func TestOptionsDSN(t *testing.T) {
	o := Options{Host: "db", Port: 5432, User: "assembly", Database: "assembly"}
	want := "host=db port=5432 user=assembly dbname=assembly sslmode=disable"
	if got := o.DSN(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	o.Password = "s3cret"
	o.SSLMode = "require"
	want = "host=db port=5432 user=assembly dbname=assembly sslmode=require password=s3cret"
	if got := o.DSN(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestNullable(t *testing.T) {
	if nullable("") != nil {
		t.Error("empty string should map to NULL")
	}
	if p := nullable("x"); p == nil || *p != "x" {
		t.Error("non-empty string should be kept")
	}
}
