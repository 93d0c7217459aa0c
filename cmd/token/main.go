// Command token mints HS256 bearer tokens for local runs against a server
// sharing the same secret. It stands in for the identity provider.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/payslips/internal/server/auth"
	"github.com/dmitrijs2005/payslips/internal/server/models"
)

func main() {
	var (
		secret   string
		role     string
		employee int64
		subject  string
		ttl      time.Duration
	)

	flag.StringVar(&secret, "s", "secretKey", "JWT HMAC secret key")
	flag.StringVar(&role, "role", string(models.RoleHRManager), "role: employee, hr_manager, administrator, auditor")
	flag.Int64Var(&employee, "employee", 0, "employee id (required for the employee role)")
	flag.StringVar(&subject, "sub", "local", "subject claim")
	flag.DurationVar(&ttl, "ttl", time.Hour, "token validity")
	flag.Parse()

	who := models.Identity{Subject: subject, EmployeeID: employee, Role: models.Role(role)}
	if !who.Role.Valid() {
		fmt.Fprintf(os.Stderr, "unknown role %q\n", role)
		os.Exit(2)
	}
	if who.Role == models.RoleEmployee && employee <= 0 {
		fmt.Fprintln(os.Stderr, "-employee is required for the employee role")
		os.Exit(2)
	}

	token, err := auth.GenerateToken(who, []byte(secret), ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(token)
}
