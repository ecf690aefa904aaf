package models

import (
	"time"

	"github.com/lib/pq"
)

// CarCondition describes whether a car is new or used.
type CarCondition string

const (
	ConditionNew  CarCondition = "new"
	ConditionUsed CarCondition = "used"
)

type FuelType string

const (
	FuelPetrol   FuelType = "petrol"
	FuelDiesel   FuelType = "diesel"
	FuelElectric FuelType = "electric"
	FuelHybrid   FuelType = "hybrid"
	FuelGas      FuelType = "gas"
)

type TransmissionType string

const (
	TransmissionManual    TransmissionType = "manual"
	TransmissionAutomatic TransmissionType = "automatic"
	TransmissionRobot     TransmissionType = "robot"
	TransmissionVariator  TransmissionType = "variator"
)

type DriveType string

const (
	DriveFront DriveType = "front"
	DriveRear  DriveType = "rear"
	DriveFull  DriveType = "full"
)

// Brand represents a car manufacturer.
type Brand struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Country   *string   `db:"country" json:"country,omitempty"`
	LogoURL   *string   `db:"logo_url" json:"logo_url,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Model represents a brand's model line with an optional production range.
type Model struct {
	ID        string    `db:"id" json:"id"`
	BrandID   string    `db:"brand_id" json:"brand_id"`
	Name      string    `db:"name" json:"name"`
	YearFrom  *int      `db:"year_from" json:"year_from,omitempty"`
	YearTo    *int      `db:"year_to" json:"year_to,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Car is a single marketplace listing.
type Car struct {
	ID           string           `db:"id" json:"id"`
	ModelID      string           `db:"model_id" json:"model_id"`
	SellerID     *string          `db:"seller_id" json:"seller_id,omitempty"`
	Year         int              `db:"year" json:"year"`
	Price        float64          `db:"price" json:"price"`
	Mileage      int              `db:"mileage" json:"mileage"`
	Condition    CarCondition     `db:"condition" json:"condition"`
	FuelType     FuelType         `db:"fuel_type" json:"fuel_type"`
	Transmission TransmissionType `db:"transmission" json:"transmission"`
	DriveType    DriveType        `db:"drive_type" json:"drive_type"`
	Color        *string          `db:"color" json:"color,omitempty"`
	EngineVolume *float64         `db:"engine_volume" json:"engine_volume,omitempty"`
	Power        *int             `db:"power" json:"power,omitempty"`
	Description  *string          `db:"description" json:"description,omitempty"`
	VIN          *string          `db:"vin" json:"vin,omitempty"`
	IsSold       bool             `db:"is_sold" json:"is_sold"`
	Photos       pq.StringArray   `db:"photos" json:"photos"`
	BrandID      string           `db:"brand_id" json:"brand_id,omitempty"`
	BrandName    string           `db:"brand_name" json:"brand_name,omitempty"`
	ModelName    string           `db:"model_name" json:"model_name,omitempty"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}

// CarFilter narrows car listings.
type CarFilter struct {
	ModelID   string
	BrandID   string
	SellerID  string
	Condition CarCondition
	Limit     int
	Offset    int
}

type CreateBrandRequest struct {
	Name    string  `json:"name" validate:"required,max=255"`
	Country *string `json:"country" validate:"omitempty,max=255"`
	LogoURL *string `json:"logo_url" validate:"omitempty,url,max=255"`
}

type UpdateBrandRequest struct {
	Name    *string `json:"name" validate:"omitempty,min=1,max=255"`
	Country *string `json:"country" validate:"omitempty,max=255"`
	LogoURL *string `json:"logo_url" validate:"omitempty,url,max=255"`
}

type CreateModelRequest struct {
	BrandID  string `json:"brand_id" validate:"required,uuid"`
	Name     string `json:"name" validate:"required,max=255"`
	YearFrom *int   `json:"year_from"`
	YearTo   *int   `json:"year_to"`
}

type UpdateModelRequest struct {
	BrandID  *string `json:"brand_id" validate:"omitempty,uuid"`
	Name     *string `json:"name" validate:"omitempty,min=1,max=255"`
	YearFrom *int    `json:"year_from"`
	YearTo   *int    `json:"year_to"`
}

// CreateCarRequest is the listing payload. SellerID is filled from the caller for seller routes.
type CreateCarRequest struct {
	ModelID      string           `json:"model_id" validate:"required,uuid"`
	SellerID     *string          `json:"seller_id" validate:"omitempty,uuid"`
	Year         int              `json:"year" validate:"required"`
	Price        float64          `json:"price"`
	Mileage      int              `json:"mileage" validate:"gte=0"`
	Condition    CarCondition     `json:"condition" validate:"required,oneof=new used"`
	FuelType     FuelType         `json:"fuel_type" validate:"required,oneof=petrol diesel electric hybrid gas"`
	Transmission TransmissionType `json:"transmission" validate:"required,oneof=manual automatic robot variator"`
	DriveType    DriveType        `json:"drive_type" validate:"required,oneof=front rear full"`
	Color        *string          `json:"color" validate:"omitempty,max=50"`
	EngineVolume *float64         `json:"engine_volume" validate:"omitempty,gte=0,lte=20"`
	Power        *int             `json:"power" validate:"omitempty,gte=0,lte=2000"`
	Description  *string          `json:"description" validate:"omitempty,max=2000"`
	VIN          *string          `json:"vin"`
	Photos       []string         `json:"photos" validate:"omitempty,dive,url"`
}

type UpdateCarRequest struct {
	ModelID      *string           `json:"model_id" validate:"omitempty,uuid"`
	Year         *int              `json:"year"`
	Price        *float64          `json:"price"`
	Mileage      *int              `json:"mileage" validate:"omitempty,gte=0"`
	Condition    *CarCondition     `json:"condition" validate:"omitempty,oneof=new used"`
	FuelType     *FuelType         `json:"fuel_type" validate:"omitempty,oneof=petrol diesel electric hybrid gas"`
	Transmission *TransmissionType `json:"transmission" validate:"omitempty,oneof=manual automatic robot variator"`
	DriveType    *DriveType        `json:"drive_type" validate:"omitempty,oneof=front rear full"`
	Color        *string           `json:"color" validate:"omitempty,max=50"`
	EngineVolume *float64          `json:"engine_volume" validate:"omitempty,gte=0,lte=20"`
	Power        *int              `json:"power" validate:"omitempty,gte=0,lte=2000"`
	Description  *string           `json:"description" validate:"omitempty,max=2000"`
	VIN          *string           `json:"vin"`
	Photos       []string          `json:"photos" validate:"omitempty,dive,url"`
}
