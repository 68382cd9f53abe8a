package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/protoarbol/catastro/internal/formvalue"
	"github.com/protoarbol/catastro/trees"
)

// treeForm holds the raw flag values of add and edit.
type treeForm struct {
	name        string
	scientific  string
	species     string
	age         string
	height      string
	health      string
	lat         string
	lng         string
	description string
	image       string
}

func (f *treeForm) bind(cmd *cobra.Command, withPosition bool) {
	fl := cmd.Flags()
	fl.StringVarP(&f.name, "name", "n", "", "common name (nom_arbol)")
	fl.StringVar(&f.scientific, "scientific", "", "scientific name")
	fl.StringVarP(&f.species, "especie", "s", "", "species")
	fl.StringVar(&f.age, "age", "", "age in years")
	fl.StringVar(&f.height, "height", "", "height in metres, e.g. 12,5")
	fl.StringVarP(&f.health, "estado", "e", "", "Saludable, Regular, Malo or Muerto")
	fl.StringVarP(&f.description, "description", "d", "", "free text notes")
	fl.StringVar(&f.image, "image", "", "path of a photo to attach")
	if withPosition {
		fl.StringVar(&f.lat, "lat", "", "latitude in decimal degrees")
		fl.StringVar(&f.lng, "lng", "", "longitude in decimal degrees")
	}
}

func (a *app) readImage(path string) (*string, error) {
	if path == "" {
		return nil, nil
	}
	img, err := formvalue.ReadImage(path, a.cfg.Images.MaxImageBytes())
	if err != nil {
		return nil, err
	}
	return &img, nil
}

func (f *treeForm) tree(a *app) (trees.Tree, error) {
	lat, err := formvalue.ParseCoordinate(f.lat, 90)
	if err != nil {
		return trees.Tree{}, fmt.Errorf("--lat: %w", err)
	}
	lng, err := formvalue.ParseCoordinate(f.lng, 180)
	if err != nil {
		return trees.Tree{}, fmt.Errorf("--lng: %w", err)
	}
	height, err := formvalue.ParseOptionalHeight(f.height)
	if err != nil {
		return trees.Tree{}, fmt.Errorf("--height: %w", err)
	}
	img, err := a.readImage(f.image)
	if err != nil {
		return trees.Tree{}, fmt.Errorf("--image: %w", err)
	}
	return trees.Tree{
		CommonName:     f.name,
		ScientificName: f.scientific,
		Species:        f.species,
		Age:            formvalue.ParseAge(f.age),
		Height:         height,
		Health:         f.health,
		Lat:            lat,
		Lng:            lng,
		Description:    f.description,
		Image:          img,
	}, nil
}

// edit collects only the flags the user set.
func (f *treeForm) edit(cmd *cobra.Command, a *app) (trees.Edit, error) {
	var e trees.Edit
	changed := cmd.Flags().Changed
	if changed("name") {
		e.CommonName = &f.name
	}
	if changed("scientific") {
		e.ScientificName = &f.scientific
	}
	if changed("especie") {
		e.Species = &f.species
	}
	if changed("age") {
		age := formvalue.ParseAge(f.age)
		e.Age = &age
	}
	if changed("height") {
		h, err := formvalue.ParseHeight(f.height)
		if err != nil {
			return e, fmt.Errorf("--height: %w", err)
		}
		e.Height = &h
	}
	if changed("estado") {
		e.Health = &f.health
	}
	if changed("description") {
		e.Description = &f.description
	}
	if changed("image") {
		img, err := a.readImage(f.image)
		if err != nil {
			return e, fmt.Errorf("--image: %w", err)
		}
		e.Image = img
	}
	return e, nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid tree id %q", raw)
	}
	return id, nil
}

func newAddCmd(a *app) *cobra.Command {
	var form treeForm
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a new tree",
		Long: `Register a tree at a position.

Examples:
  catastro add --name Peumo --estado Saludable --lat -36.827 --lng -73.050
  catastro add -n Boldo -e Regular --age 12 --height "4,5 m" --lat -36.83 --lng -73.04 --image boldo.jpg`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			draft, err := form.tree(a)
			if err != nil {
				return err
			}
			if err := a.load(cmd.Context()); err != nil {
				return err
			}
			created, err := a.ctrl.Create(cmd.Context(), draft)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Árbol %d registrado: %s\n", created.ID, created.CommonName)
			return nil
		},
	}
	form.bind(cmd, true)
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lng")
	return cmd
}

func newEditCmd(a *app) *cobra.Command {
	var form treeForm
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of a tree",
		Long: `Change the given fields of a tree; fields without a flag keep their value.
The position cannot be changed. Without --image the stored photo is kept.

Examples:
  catastro edit 42 --estado Malo
  catastro edit 42 --age 15 --description "poda en marzo"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			edit, err := form.edit(cmd, a)
			if err != nil {
				return err
			}
			if edit.IsZero() {
				return errors.New("nothing to change: pass at least one field flag")
			}
			if err := a.load(cmd.Context()); err != nil {
				return err
			}
			updated, err := a.ctrl.Update(cmd.Context(), id, edit)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Árbol %d actualizado: %s\n", updated.ID, updated.CommonName)
			return nil
		},
	}
	form.bind(cmd, false)
	return cmd
}

func newRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>...",
		Aliases: []string{"delete"},
		Short:   "Delete trees",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, raw := range args {
				id, err := parseID(raw)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			for _, id := range ids {
				if err := a.ctrl.Delete(cmd.Context(), id); err != nil {
					return fmt.Errorf("delete %d: %w", id, err)
				}
				fmt.Fprintf(a.out, "Árbol %d eliminado\n", id)
			}
			return nil
		},
	}
}
