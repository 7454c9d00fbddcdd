package service

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// whatsappLink builds the wa.me handoff URL a buyer opens to contact the
// organizer. Opened as a navigation by the caller, never called by the
// service itself.
func whatsappLink(number, text string) string {
	return fmt.Sprintf("https://wa.me/%s?text=%s", number, url.QueryEscape(text))
}

func reservationMessage(raffleTitle string, numbers []int) string {
	if len(numbers) == 1 {
		return fmt.Sprintf("Hola! Me interesa el número %d de la rifa \"%s\"", numbers[0], raffleTitle)
	}

	parts := make([]string, len(numbers))
	for i, n := range numbers {
		parts[i] = strconv.Itoa(n)
	}
	return fmt.Sprintf("Hola! Me interesan los números %s de la rifa \"%s\"", strings.Join(parts, ", "), raffleTitle)
}
