package service

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWhatsappLink(t *testing.T) {
	link := whatsappLink("5491122334455", reservationMessage("Rifa del club", []int{7}))

	parsed, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "wa.me", parsed.Host)
	assert.Equal(t, "/5491122334455", parsed.Path)
	assert.Equal(t, `Hola! Me interesa el número 7 de la rifa "Rifa del club"`, parsed.Query().Get("text"))
}

func TestReservationMessage(t *testing.T) {
	t.Run("Single Number", func(t *testing.T) {
		msg := reservationMessage("Rifa", []int{3})
		assert.Equal(t, `Hola! Me interesa el número 3 de la rifa "Rifa"`, msg)
	})

	t.Run("Several Numbers", func(t *testing.T) {
		msg := reservationMessage("Rifa", []int{3, 7, 12})
		assert.Equal(t, `Hola! Me interesan los números 3, 7, 12 de la rifa "Rifa"`, msg)
	})
}
