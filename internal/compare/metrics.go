package compare

// confusion is a binary confusion matrix over parallel label vectors.
type confusion struct {
	tp, fp, fn, tn int
}

func confusionOf(yTrue, yPred []int) confusion {
	var c confusion
	for i := range yTrue {
		switch {
		case yTrue[i] == 1 && yPred[i] == 1:
			c.tp++
		case yTrue[i] == 0 && yPred[i] == 1:
			c.fp++
		case yTrue[i] == 1 && yPred[i] == 0:
			c.fn++
		default:
			c.tn++
		}
	}
	return c
}

func (c confusion) precision() float64 { return safeDiv(c.tp, c.tp+c.fp) }

func (c confusion) recall() float64 { return safeDiv(c.tp, c.tp+c.fn) }

func (c confusion) f1() float64 { return safeDiv(2*c.tp, 2*c.tp+c.fp+c.fn) }

// safeDiv returns 0 for a zero denominator.
func safeDiv(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
