package kernel

// MatMul computes out[m,n] = a[m,k] @ b[k,n].
// Uses the naive i-k-j loop order so the inner loop walks rows of b.
func MatMul(a, b, out []float32, m, k, n int) {
	for i := 0; i < m; i++ {
		row := out[i*n : (i+1)*n]
		for j := range row {
			row[j] = 0
		}
		for p := 0; p < k; p++ {
			av := a[i*k+p]
			if av == 0 {
				continue
			}
			bRow := b[p*n : (p+1)*n]
			for j, bv := range bRow {
				row[j] += av * bv
			}
		}
	}
}

// MatMulTransB computes out[m,k] = a[m,n] @ b[k,n]^T.
func MatMulTransB(a, b, out []float32, m, n, k int) {
	for i := 0; i < m; i++ {
		aRow := a[i*n : (i+1)*n]
		for p := 0; p < k; p++ {
			bRow := b[p*n : (p+1)*n]
			var sum float32
			for j, av := range aRow {
				sum += av * bRow[j]
			}
			out[i*k+p] = sum
		}
	}
}

// MatMulTransAAcc accumulates out[k,n] += a[m,k]^T @ b[m,n].
func MatMulTransAAcc(a, b, out []float32, m, k, n int) {
	for i := 0; i < m; i++ {
		bRow := b[i*n : (i+1)*n]
		for p := 0; p < k; p++ {
			av := a[i*k+p]
			if av == 0 {
				continue
			}
			oRow := out[p*n : (p+1)*n]
			for j, bv := range bRow {
				oRow[j] += av * bv
			}
		}
	}
}

// AddRowVector adds v[n] to every row of x[m,n] in place.
func AddRowVector(x, v []float32, m, n int) {
	for i := 0; i < m; i++ {
		row := x[i*n : (i+1)*n]
		for j, bv := range v {
			row[j] += bv
		}
	}
}

// ColumnSumAcc accumulates out[n] += sum over rows of x[m,n].
func ColumnSumAcc(x, out []float32, m, n int) {
	for i := 0; i < m; i++ {
		row := x[i*n : (i+1)*n]
		for j, v := range row {
			out[j] += v
		}
	}
}

// Fill sets every element of x to v.
func Fill(x []float32, v float32) {
	for i := range x {
		x[i] = v
	}
}
