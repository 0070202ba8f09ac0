package helper

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// RequestID tags one question's log context.
func RequestID() string {
	return uuid.NewString()
}

// PrettyPrint dumps a value as indented json, for debugging output.
func PrettyPrint(v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Warn().Msg("error pretty printing")
		return
	}
	fmt.Println(string(b))
}
