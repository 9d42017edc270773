package sourcewatch

import (
	"encoding/json"
	"fmt"
)

// CallKey identifies a cached or in-flight query result. encoding/json
// writes map keys sorted, so equal argument sets always give equal keys.
func CallKey(endpoint string, args Args) (string, error) {
	if len(args) == 0 {
		return endpoint + "()", nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("%s: serialize arguments: %w", endpoint, err)
	}
	return endpoint + "(" + string(data) + ")", nil
}
