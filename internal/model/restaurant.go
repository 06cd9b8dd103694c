package model

// Restaurant is an opaque snapshot of restaurant details supplied by the
// caller when voting.  Restaurant master data lives in an external provider;
// the server never validates these fields, it only stores the latest
// snapshot per restaurant ID so that a finalized group carries displayable
// details even when finalization happens during the expiry sweep.
type Restaurant struct {
    RestaurantID string `json:"restaurant_id"`
    Name         string `json:"name"`
    Location     string `json:"location,omitempty"`
    URL          string `json:"url,omitempty"`
    PhoneNumber  string `json:"phone_number,omitempty"`
    Cuisine      string `json:"cuisine,omitempty"`
    PriceRange   string `json:"price_range,omitempty"`
}
