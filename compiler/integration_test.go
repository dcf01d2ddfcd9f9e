package compiler

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/chazu/sabri/vm"
)

// Integration tests: compile and execute whole sabri programs

func runProgram(t *testing.T, source string) string {
	t.Helper()
	var out strings.Builder
	v := newTestVM(&out)
	v.MaxSteps = 1_000_000
	if _, err := v.Eval(context.Background(), source); err != nil {
		t.Fatalf("Eval: %v\nsource:\n%s", err, source)
	}
	return out.String()
}

func TestIntegrationFactorialTable(t *testing.T) {
	source := `
fact := n ->
  if n <= 1
    return 1
  n * fact(n - 1)

i := 0
while i <= 5
  putsf("%d! = %d\n", i, fact(i))
  i = i + 1
`
	want := "0! = 1\n1! = 1\n2! = 2\n3! = 6\n4! = 24\n5! = 120\n"
	if got := runProgram(t, source); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestIntegrationGCD(t *testing.T) {
	source := `
gcd := a, b ->
  while b != 0
    t := b
    b = a % b
    a = t
  a

putsl(gcd(48, 18), gcd(17, 5), gcd(100, 75))
`
	if got := runProgram(t, source); got != "6 1 25\n" {
		t.Errorf("output = %q, want %q", got, "6 1 25\n")
	}
}

func TestIntegrationPrimes(t *testing.T) {
	source := `
prime? := n ->
  if n < 2
    return false
  d := 2
  while d * d <= n
    if n % d == 0
      return false
    d = d + 1
  true

n := 0
while n < 30
  if prime?(n)
    puts(n, "")
  n = n + 1
`
	want := "2 3 5 7 11 13 17 19 23 29 "
	if got := runProgram(t, source); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestIntegrationHigherOrder(t *testing.T) {
	source := `
compose := f, g ->
  x ->
    f(g(x))

inc := x ->
  x + 1
double := x ->
  x * 2

repeat := n, f ->
  i := 0
  while i < n
    f(i)
    i = i + 1

inc_then_double := compose(double, inc)
repeat(3, i ->
  puts(inc_then_double(i), "")
)
`
	if got := runProgram(t, source); got != "2 4 6 " {
		t.Errorf("output = %q, want %q", got, "2 4 6 ")
	}
}

func TestIntegrationBankAccount(t *testing.T) {
	source := `
account := balance ->
  deposit := amount ->
    balance = balance + amount
  withdraw := amount ->
    if amount > balance
      return "insufficient funds"
    balance = balance - amount
  op := name, amount ->
    if name == "deposit"
      return deposit(amount)
    withdraw(amount)
  op

acct := account(100)
putsl(acct("deposit", 50))
putsl(acct("withdraw", 30))
putsl(acct("withdraw", 500))
`
	want := "150\n120\ninsufficient funds\n"
	if got := runProgram(t, source); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestIntegrationMutualRecursion(t *testing.T) {
	source := `
odd? :=
even? := n ->
  if n == 0
    return true
  odd?(n - 1)
odd? = n ->
  if n == 0
    return false
  even?(n - 1)

putsl(even?(10), odd?(7), even?(3))
`
	if got := runProgram(t, source); got != "true true false\n" {
		t.Errorf("output = %q, want %q", got, "true true false\n")
	}
}

func TestIntegrationStepLimit(t *testing.T) {
	var out strings.Builder
	v := newTestVM(&out)
	v.MaxSteps = 500

	_, err := v.Eval(context.Background(), "i := 0\nwhile i < 1000\n  i = i + 1\ni")
	if !errors.Is(err, vm.ErrStepLimit) {
		t.Fatalf("Eval error = %v, want step limit", err)
	}

	var result vm.Value
	for {
		result, err = v.Resume(context.Background())
		if err == nil {
			break
		}
		if !errors.Is(err, vm.ErrStepLimit) {
			t.Fatalf("Resume: %v", err)
		}
	}
	if vm.Display(result) != "1000" {
		t.Errorf("result = %s, want 1000", vm.Display(result))
	}
}
