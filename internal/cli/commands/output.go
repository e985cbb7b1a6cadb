package commands

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/petshop-dev/petshop/internal/cli/client"
	"github.com/petshop-dev/petshop/internal/session"
)

func parseID(arg string) (uint, error) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid ID %q", arg)
	}
	return uint(id), nil
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func owner(id uint) string {
	if id == 0 {
		return "store"
	}
	return strconv.FormatUint(uint64(id), 10)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func printPets(w io.Writer, pets []client.Pet) {
	if len(pets) == 0 {
		fmt.Fprintln(w, "No pets found.")
		return
	}

	t := newTable(w)
	fmt.Fprintln(t, "ID\tNAME\tBREED\tAGE\tGENDER\tPRICE\tOWNER")
	fmt.Fprintln(t, "──\t────\t─────\t───\t──────\t─────\t─────")
	for _, p := range pets {
		fmt.Fprintf(t, "%d\t%s\t%s\t%d\t%s\t%.2f\t%s\n", p.ID, p.Name, p.Breed, p.Age, p.Gender, p.Price, owner(p.OwnerID))
	}
	t.Flush()
}

func printPet(w io.Writer, p *client.Pet) {
	t := newTable(w)
	fmt.Fprintf(t, "ID:\t%d\n", p.ID)
	fmt.Fprintf(t, "Name:\t%s\n", p.Name)
	fmt.Fprintf(t, "Breed:\t%s\n", p.Breed)
	fmt.Fprintf(t, "Age:\t%d\n", p.Age)
	fmt.Fprintf(t, "Gender:\t%s\n", p.Gender)
	fmt.Fprintf(t, "Sterilized:\t%s\n", yesNo(p.Sterilized))
	fmt.Fprintf(t, "Price:\t%.2f\n", p.Price)
	fmt.Fprintf(t, "Owner:\t%s\n", owner(p.OwnerID))
	if p.Description != "" {
		fmt.Fprintf(t, "Description:\t%s\n", p.Description)
	}
	if p.Image != "" {
		fmt.Fprintf(t, "Image:\t%s\n", p.Image)
	}
	t.Flush()
}

func printProducts(w io.Writer, products []client.Product) {
	if len(products) == 0 {
		fmt.Fprintln(w, "No products found.")
		return
	}

	t := newTable(w)
	fmt.Fprintln(t, "ID\tNAME\tCATEGORY\tBRAND\tSTOCK\tPRICE\tOWNER")
	fmt.Fprintln(t, "──\t────\t────────\t─────\t─────\t─────\t─────")
	for _, p := range products {
		fmt.Fprintf(t, "%d\t%s\t%s\t%s\t%d\t%.2f\t%s\n", p.ID, p.Name, p.Category, p.Brand, p.Stock, p.Price, owner(p.OwnerID))
	}
	t.Flush()
}

func printProduct(w io.Writer, p *client.Product) {
	t := newTable(w)
	fmt.Fprintf(t, "ID:\t%d\n", p.ID)
	fmt.Fprintf(t, "Name:\t%s\n", p.Name)
	fmt.Fprintf(t, "Category:\t%s\n", p.Category)
	if p.Brand != "" {
		fmt.Fprintf(t, "Brand:\t%s\n", p.Brand)
	}
	fmt.Fprintf(t, "Stock:\t%d\n", p.Stock)
	fmt.Fprintf(t, "Mass:\t%g\n", p.Mass)
	fmt.Fprintf(t, "Price:\t%.2f\n", p.Price)
	fmt.Fprintf(t, "Owner:\t%s\n", owner(p.OwnerID))
	if p.Description != "" {
		fmt.Fprintf(t, "Description:\t%s\n", p.Description)
	}
	t.Flush()
}

func printUsers(w io.Writer, users []session.UserSummary) {
	if len(users) == 0 {
		fmt.Fprintln(w, "No users found.")
		return
	}

	t := newTable(w)
	fmt.Fprintln(t, "ID\tNAME\tEMAIL\tROLE\tBLOCKED")
	fmt.Fprintln(t, "──\t────\t─────\t────\t───────")
	for _, u := range users {
		fmt.Fprintf(t, "%d\t%s\t%s\t%s\t%s\n", u.ID, u.FullName(), u.Email, u.Role, yesNo(u.Blocked))
	}
	t.Flush()
}

func printUser(w io.Writer, u *session.UserSummary) {
	t := newTable(w)
	fmt.Fprintf(t, "ID:\t%d\n", u.ID)
	fmt.Fprintf(t, "Name:\t%s\n", u.FullName())
	fmt.Fprintf(t, "Email:\t%s\n", u.Email)
	fmt.Fprintf(t, "Role:\t%s\n", u.Role)
	fmt.Fprintf(t, "Blocked:\t%s\n", yesNo(u.Blocked))
	if u.CreatedAt != "" {
		fmt.Fprintf(t, "Created:\t%s\n", u.CreatedAt)
	}
	t.Flush()
}
