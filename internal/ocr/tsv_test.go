package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTSV = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
	"1\t1\t0\t0\t0\t0\t0\t0\t800\t600\t-1\t\n" +
	"4\t1\t1\t1\t1\t0\t10\t10\t300\t30\t-1\t\n" +
	"5\t1\t1\t1\t1\t1\t10\t10\t80\t30\t90\t发票代码\n" +
	"5\t1\t1\t1\t1\t2\t95\t12\t200\t28\t80\t144032509110\n" +
	"5\t1\t1\t1\t2\t1\t10\t50\t40\t20\t96\tTotal\n" +
	"5\t1\t1\t1\t2\t2\t55\t50\t60\t20\t94\tAmount\n" +
	"5\t1\t1\t1\t3\t1\t10\t90\t60\t20\t50\t \n"

func TestParseTSV_GroupsWordsIntoLines(t *testing.T) {
	regions, err := ParseTSV([]byte(sampleTSV))
	require.NoError(t, err)
	require.Len(t, regions, 2)

	first := regions[0]
	assert.Equal(t, "发票代码144032509110", first.Text)
	assert.InDelta(t, 0.85, first.Confidence, 1e-9)
	minX, minY, maxX, maxY := first.Rect()
	assert.Equal(t, []float64{10, 10, 295, 40}, []float64{minX, minY, maxX, maxY})

	assert.Equal(t, "Total Amount", regions[1].Text)
	assert.InDelta(t, 0.95, regions[1].Confidence, 1e-9)
}

func TestParseTSV_EmptyAndBadHeader(t *testing.T) {
	regions, err := ParseTSV(nil)
	require.NoError(t, err)
	assert.Empty(t, regions)

	_, err = ParseTSV([]byte("level\ttext\n5\thello\n"))
	require.Error(t, err)
}
