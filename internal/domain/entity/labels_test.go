package entity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLabels_Label(t *testing.T) {
	labels := Labels{"british", "siamese"}
	require.Equal(t, "british", labels.Label(0))
	require.Equal(t, "siamese", labels.Label(1))
}

func TestLabels_LabelFallback(t *testing.T) {
	labels := Labels{"british"}
	require.Equal(t, "cls_1", labels.Label(1))
	require.Equal(t, "cls_42", labels.Label(42))
	require.Equal(t, "cls_0", Labels(nil).Label(0))
}
