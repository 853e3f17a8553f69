package db

import (
	"context"
	"testing"
)

func TestNewWithInvalidURL(t *testing.T) {
	_, err := New(context.Background(), "postgres://invalid:5432/nonexistent?connect_timeout=1")
	if err == nil {
		t.Fatal("expected error for invalid database URL, got nil")
	}
}

func TestNilDB(t *testing.T) {
	var d *DB
	if d.PoolOrNil() != nil {
		t.Error("expected nil pool from nil DB")
	}
	d.Close()
}

func TestRunMigrationsMissingDir(t *testing.T) {
	if err := RunMigrations("postgres://invalid:5432/x?sslmode=disable&connect_timeout=1", t.TempDir()+"/none"); err == nil {
		t.Error("expected error for unreachable database")
	}
}
