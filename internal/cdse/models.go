package cdse

import (
	"encoding/json"
	"time"
)

// TokenResponse is the OpenID Connect token endpoint response.
type TokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int    `json:"expires_in"`
	RefreshToken     string `json:"refresh_token"`
	RefreshExpiresIn int    `json:"refresh_expires_in"`
	TokenType        string `json:"token_type"`
}

// ProductsResponse is one page of an OData Products query.
type ProductsResponse struct {
	Context  string    `json:"@odata.context"`
	Value    []Product `json:"value"`
	NextLink string    `json:"@odata.nextLink,omitempty"`
}

// Product is a catalog entry.
type Product struct {
	ID               string          `json:"Id"`
	Name             string          `json:"Name"`
	ContentType      string          `json:"ContentType"`
	ContentLength    int64           `json:"ContentLength"`
	OriginDate       *time.Time      `json:"OriginDate,omitempty"`
	PublicationDate  *time.Time      `json:"PublicationDate,omitempty"`
	ModificationDate *time.Time      `json:"ModificationDate,omitempty"`
	Online           bool            `json:"Online"`
	S3Path           string          `json:"S3Path"`
	ContentDate      ContentDate     `json:"ContentDate"`
	Footprint        string          `json:"Footprint"`    // EWKT
	GeoFootprint     json.RawMessage `json:"GeoFootprint"` // GeoJSON geometry
}

// ContentDate is the sensing interval of a product.
type ContentDate struct {
	Start time.Time `json:"Start"`
	End   time.Time `json:"End"`
}
