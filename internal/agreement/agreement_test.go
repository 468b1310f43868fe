package agreement

import (
	"bytes"
	"testing"
	"time"

	"github.com/shinyyama/agri-market-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOrder() *model.Order {
	return &model.Order{
		ID:            7,
		NegotiationID: 3,
		CropID:        1,
		FarmerUID:     "farmer-1",
		WholesalerUID: "wholesaler-1",
		PricePerUnit:  2400,
		Quantity:      model.Quantity{Value: 100, Unit: "quintal"},
		TotalAmount:   240000,
		Status:        model.OrderStatusPending,
	}
}

func TestRender(t *testing.T) {
	crop := &model.Crop{ID: 1, Name: "Basmati rice", Category: "grain", Unit: "quintal"}
	data, err := Render(testOrder(), crop, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestRenderWithoutCrop(t *testing.T) {
	data, err := Render(testOrder(), nil, time.Now())
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestObjectPathAndURL(t *testing.T) {
	path := ObjectPath(testOrder())
	assert.Equal(t, "agreements/negotiation-3/order-7.pdf", path)
	assert.Equal(t,
		"https://firebasestorage.googleapis.com/v0/b/bkt/o/agreements%2Fnegotiation-3%2Forder-7.pdf?alt=media&token=tok",
		DownloadURL("bkt", path, "tok"))
}
