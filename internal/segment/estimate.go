package segment

// charsPerToken is the character/token approximation ratio. Claude tokenizes
// English at roughly four characters per token.
const charsPerToken = 4

// EstimateTokens returns ceil(len(text)/4). Always rounds up so the
// estimate never undershoots.
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + charsPerToken - 1) / charsPerToken
}
