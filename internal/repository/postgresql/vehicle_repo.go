package postgresql

import (
	"context"
	"database/sql"
	"fmt"

	"parkingspace/internal/domain"
	"parkingspace/internal/repository"
)

type pgVehicleRepository struct {
	db *sql.DB
}

func NewPgVehicleRepository(db *sql.DB) repository.VehicleRepository {
	return &pgVehicleRepository{db: db}
}

// GetOrCreate relies on the (vehicle_type, vehicle_number) unique key: concurrent callers
// insert at most one row and all of them read it back.
func (r *pgVehicleRepository) GetOrCreate(ctx context.Context, vehicleType domain.VehicleType, number string) (*domain.Vehicle, error) {
	insert := `INSERT INTO vehicles (vehicle_type, vehicle_number) VALUES ($1, $2)
	            ON CONFLICT ON CONSTRAINT vehicles_type_number_key DO NOTHING`
	if _, err := r.db.ExecContext(ctx, insert, vehicleType, number); err != nil {
		return nil, fmt.Errorf("VehicleRepository.GetOrCreate (insert): %w", err)
	}

	v := &domain.Vehicle{}
	query := `SELECT id, vehicle_type, vehicle_number FROM vehicles WHERE vehicle_type = $1 AND vehicle_number = $2`
	if err := r.db.QueryRowContext(ctx, query, vehicleType, number).Scan(&v.ID, &v.Type, &v.Number); err != nil {
		return nil, fmt.Errorf("VehicleRepository.GetOrCreate (select): %w", err)
	}
	return v, nil
}
