package models

// SGSObservation mirrors one entry of the Banco Central SGS API JSON response.
// Both fields arrive as strings ("data" is dd/mm/yyyy, "valor" uses a comma
// decimal separator); the remote payload is untrusted and converted per-entry.
type SGSObservation struct {
	Date  string `json:"data"`
	Value string `json:"valor"`
}
