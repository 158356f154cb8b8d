package model_test

import (
	"fmt"

	"github.com/raman-lab/fcpr/internal/model"
)

func ExampleEvaluateDeg() {
	p := model.EvaluateDeg(45, 45, 2, 0)
	fmt.Printf("f1=%.4f f2=%.4f\n", p.F1, p.F2)

	// Output:
	// f1=1.0000 f2=0.2500
}
