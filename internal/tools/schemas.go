package tools

// WeatherInput defines input for the getWeather tool.
type WeatherInput struct {
	Latitude  float64 `json:"latitude" jsonschema_description:"Latitude of the location"`
	Longitude float64 `json:"longitude" jsonschema_description:"Longitude of the location"`
}

// SearchInput defines input for the webSearch tool.
type SearchInput struct {
	Query string `json:"query" jsonschema_description:"The search query"`
}

// CreateDocumentInput defines input for the createDocument tool.
type CreateDocumentInput struct {
	Title string `json:"title" jsonschema_description:"Title of the document to create"`
	Kind  string `json:"kind" jsonschema_description:"Kind of document: text, code, sheet or image"`
}

// UpdateDocumentInput defines input for the updateDocument tool.
type UpdateDocumentInput struct {
	ID          string `json:"id" jsonschema_description:"ID of the document to update"`
	Description string `json:"description" jsonschema_description:"Description of the changes to make"`
}

// RequestSuggestionsInput defines input for the requestSuggestions tool.
type RequestSuggestionsInput struct {
	DocumentID string `json:"documentId" jsonschema_description:"ID of the document to suggest edits for"`
}
